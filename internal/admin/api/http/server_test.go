package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deliveryhub/internal/admin/api/http/handle"
	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/earnings"
	"deliveryhub/internal/marketing"
	"deliveryhub/internal/payouts"
	"deliveryhub/internal/referral"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPayouts struct {
	payouts     map[string]models.Payout
	transitions []string
}

func (s *stubPayouts) DueList(context.Context, string) ([]payouts.PayeeSummary, error) {
	return []payouts.PayeeSummary{{
		Payee:      payouts.Payee{Type: models.PayeeDriver, ID: "d-1", Name: "Dana"},
		DueSummary: earnings.DueSummary{EarnedCents: 5000, DueCents: 5000, IsDue: true},
	}}, nil
}

func (s *stubPayouts) Summary(_ context.Context, payeeType, payeeID string) (payouts.PayeeSummary, error) {
	return payouts.PayeeSummary{Payee: payouts.Payee{Type: payeeType, ID: payeeID}}, nil
}

func (s *stubPayouts) Create(_ context.Context, req payouts.CreateRequest, createdBy string) (models.Payout, error) {
	if err := req.Validate(); err != nil {
		return models.Payout{}, err
	}
	p := models.Payout{ID: fmt.Sprintf("p-%d", len(s.payouts)+1), PayeeType: req.PayeeType, PayeeID: req.PayeeID,
		AmountCents: req.AmountCents, Status: earnings.PayoutPending, CreatedBy: createdBy}
	s.payouts[p.ID] = p
	return p, nil
}

func (s *stubPayouts) Transition(_ context.Context, id, to, _, _ string) (models.Payout, error) {
	p, ok := s.payouts[id]
	if !ok {
		return models.Payout{}, xerrors.ErrNotFound
	}
	if !payouts.CanTransition(p.Status, to) {
		return models.Payout{}, xerrors.ErrInvalidTransition
	}
	p.Status = to
	s.payouts[id] = p
	s.transitions = append(s.transitions, to)
	return p, nil
}

func (s *stubPayouts) Get(_ context.Context, id string) (models.Payout, error) {
	p, ok := s.payouts[id]
	if !ok {
		return models.Payout{}, xerrors.ErrNotFound
	}
	return p, nil
}

func (s *stubPayouts) List(_ context.Context, f payouts.Filter) ([]models.Payout, error) {
	out := []models.Payout{}
	for _, p := range s.payouts {
		if f.PayeeID == "" || p.PayeeID == f.PayeeID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubReferrals struct {
	core.IReferrals
}

func (stubReferrals) Join(_ context.Context, userID string) (referral.Affiliate, error) {
	return referral.Affiliate{UserID: userID, Code: "ABCD1234", Status: "active"}, nil
}

type memContent struct {
	core.IContentRepo
	faq    []dto.FAQItem
	promos map[string]marketing.PromoCode
}

func (m *memContent) FAQ(_ context.Context, includeDrafts bool) ([]dto.FAQItem, error) {
	out := []dto.FAQItem{}
	for _, f := range m.faq {
		if includeDrafts || f.Published {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memContent) CreateFAQ(_ context.Context, item dto.FAQItem) (dto.FAQItem, error) {
	item.ID = fmt.Sprintf("f-%d", len(m.faq)+1)
	m.faq = append(m.faq, item)
	return item, nil
}

func (m *memContent) Promo(_ context.Context, code string) (marketing.PromoCode, error) {
	p, ok := m.promos[code]
	if !ok {
		return marketing.PromoCode{}, xerrors.ErrNotFound
	}
	return p, nil
}

type memTickets struct {
	tickets map[string]dto.Ticket
}

func (m *memTickets) Create(_ context.Context, t dto.Ticket, first dto.TicketMessage) (dto.Ticket, error) {
	t.ID = fmt.Sprintf("t-%d", len(m.tickets)+1)
	first.TicketID = t.ID
	t.Messages = []dto.TicketMessage{first}
	m.tickets[t.ID] = t
	return t, nil
}

func (m *memTickets) Get(_ context.Context, id string) (dto.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	return t, nil
}

func (m *memTickets) List(_ context.Context, f dto.TicketFilter) ([]dto.Ticket, error) {
	out := []dto.Ticket{}
	for _, t := range m.tickets {
		if f.UserID == "" || t.UserID == f.UserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTickets) AddMessage(_ context.Context, msg dto.TicketMessage) (dto.TicketMessage, error) {
	msg.ID = "m-1"
	return msg, nil
}

func (m *memTickets) SetStatus(_ context.Context, id, status string) (dto.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	t.Status = status
	m.tickets[id] = t
	return t, nil
}

type fixture struct {
	url     string
	auth    *httpx.Authenticator
	payouts *stubPayouts
}

func newTestServer(t *testing.T) fixture {
	t.Helper()
	log := logger.Discard()
	pay := &stubPayouts{payouts: map[string]models.Payout{}}
	content := &memContent{
		faq: []dto.FAQItem{
			{ID: "f-1", Question: "Where is my order?", Answer: "On its way", Published: true},
			{ID: "f-2", Question: "Draft", Answer: "Hidden"},
		},
		promos: map[string]marketing.PromoCode{
			"WELCOME": {Code: "WELCOME", DiscountType: marketing.DiscountFixed, Value: 500, Active: true},
		},
	}

	mux := http.NewServeMux()
	Routes(mux, Handlers{
		Directory:  handle.NewDirectoryHandler(services.NewDirectoryService(nil, nil, log), log),
		Payouts:    handle.NewPayoutHandler(pay, log),
		Affiliates: handle.NewAffiliateHandler(stubReferrals{}, log),
		Content:    handle.NewContentHandler(services.NewContentService(content, nil, log), log),
		Tickets:    handle.NewTicketHandler(services.NewTicketService(&memTickets{tickets: map[string]dto.Ticket{}}, log), log),
		Stats:      handle.NewStatsHandler(services.NewStatsService(nil), log),
	})
	auth := httpx.NewAuthenticator("a-long-enough-development-secret", "deliveryhub", time.Hour)
	srv := httptest.NewServer(httpx.Stack(mux, auth, nil, 10))
	t.Cleanup(srv.Close)
	return fixture{url: srv.URL, auth: auth, payouts: pay}
}

func (f fixture) token(t *testing.T, userID, role, restaurantID string) string {
	t.Helper()
	tok, err := f.auth.IssueToken(userID, role, restaurantID)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoutes_PayoutWorkflow(t *testing.T) {
	f := newTestServer(t)
	admin := f.token(t, "admin-1", httpx.RoleAdmin, "")
	driver := f.token(t, "d-1", httpx.RoleDriver, "")

	resp := do(t, http.MethodGet, f.url+"/payouts/due", driver, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodGet, f.url+"/payouts/due", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var due []payouts.PayeeSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&due))
	require.Len(t, due, 1)
	assert.True(t, due[0].IsDue)

	resp = do(t, http.MethodPost, f.url+"/payouts", admin, payouts.CreateRequest{PayeeType: "vendor", PayeeID: "d-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/payouts", admin, payouts.CreateRequest{PayeeType: models.PayeeDriver, PayeeID: "d-1", AmountCents: 5000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Payout
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "admin-1", created.CreatedBy)

	resp = do(t, http.MethodPost, f.url+"/payouts/"+created.ID+"/pay", admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/payouts/"+created.ID+"/approve", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPost, f.url+"/payouts/"+created.ID+"/pay", admin, dto.StatusRequest{Note: "wire 42"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{earnings.PayoutApproved, earnings.PayoutPaid}, f.payouts.transitions)

	resp = do(t, http.MethodGet, f.url+"/payouts/p-404", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, f.url+"/payouts/me/summary", driver, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine struct {
		Summary payouts.PayeeSummary `json:"summary"`
		Payouts []models.Payout      `json:"payouts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mine))
	assert.Equal(t, models.PayeeDriver, mine.Summary.Type)
	assert.Equal(t, "d-1", mine.Summary.ID)
	assert.Len(t, mine.Payouts, 1)

	resp = do(t, http.MethodGet, f.url+"/payouts/me/summary", admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoutes_PublicContent(t *testing.T) {
	f := newTestServer(t)

	resp := do(t, http.MethodGet, f.url+"/faq", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var faq []dto.FAQItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&faq))
	require.Len(t, faq, 1)
	assert.Equal(t, "f-1", faq[0].ID)

	resp = do(t, http.MethodGet, f.url+"/faq", f.token(t, "admin-1", httpx.RoleAdmin, ""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&faq))
	assert.Len(t, faq, 2)

	resp = do(t, http.MethodPost, f.url+"/admin/faq", f.token(t, "u-1", httpx.RoleCustomer, ""), dto.FAQRequest{Question: "Q", Answer: "A"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	customer := f.token(t, "u-1", httpx.RoleCustomer, "")
	resp = do(t, http.MethodGet, f.url+"/promo-codes/welcome/check?subtotal_cents=2000", customer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var check services.PromoCheck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&check))
	assert.True(t, check.Valid)
	assert.Equal(t, int64(500), check.DiscountCents)

	resp = do(t, http.MethodGet, f.url+"/promo-codes/welcome/check", customer, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodGet, f.url+"/promo-codes/nope/check?subtotal_cents=2000", customer, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodGet, f.url+"/promo-codes/welcome/check?subtotal_cents=2000", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, f.url+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_Tickets(t *testing.T) {
	f := newTestServer(t)
	customer := f.token(t, "u-1", httpx.RoleCustomer, "")
	other := f.token(t, "u-9", httpx.RoleCustomer, "")
	admin := f.token(t, "admin-1", httpx.RoleAdmin, "")

	resp := do(t, http.MethodPost, f.url+"/tickets", "", dto.TicketRequest{Subject: "Late", Body: "Cold food"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/tickets", customer, dto.TicketRequest{Subject: "Late", Body: "Cold food"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ticket dto.Ticket
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ticket))

	resp = do(t, http.MethodGet, f.url+"/tickets/"+ticket.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/tickets/"+ticket.ID+"/messages", admin, dto.MessageRequest{Body: "Sorry about that"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/tickets/"+ticket.ID+"/status", customer, dto.StatusRequest{Status: dto.TicketClosed})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, http.MethodPost, f.url+"/tickets/"+ticket.ID+"/status", admin, dto.StatusRequest{Status: dto.TicketClosed})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/tickets/"+ticket.ID+"/messages", customer, dto.MessageRequest{Body: "Hello?"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRoutes_Affiliates(t *testing.T) {
	f := newTestServer(t)

	resp := do(t, http.MethodPost, f.url+"/affiliates", f.token(t, "d-1", httpx.RoleDriver, ""), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPost, f.url+"/affiliates", f.token(t, "u-1", httpx.RoleCustomer, ""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var a referral.Affiliate
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	assert.Equal(t, "u-1", a.UserID)
	assert.Equal(t, "ABCD1234", a.Code)
}
