package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth() *Authenticator {
	return NewAuthenticator("test-secret", "deliveryhub", time.Hour)
}

func TestAuthenticator_IssueAndParse(t *testing.T) {
	a := newAuth()
	token, err := a.IssueToken("u-1", RoleRestaurant, "r-9")
	require.NoError(t, err)

	id, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u-1", Role: RoleRestaurant, RestaurantID: "r-9"}, id)

	_, err = NewAuthenticator("other", "deliveryhub", time.Hour).Parse(token)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	_, err = a.IssueToken("u-1", "superuser", "")
	assert.Error(t, err)
}

func TestAuthenticator_Expired(t *testing.T) {
	a := NewAuthenticator("test-secret", "deliveryhub", -time.Minute)
	token, err := a.IssueToken("u-1", RoleCustomer, "")
	require.NoError(t, err)

	_, err = a.Parse(token)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestRequireRole(t *testing.T) {
	a := newAuth()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		fmt.Fprint(w, id.UserID)
	})
	h := a.Authenticate(RequireRole(ok, RoleAdmin))

	adminToken, _ := a.IssueToken("admin-1", RoleAdmin, "")
	customerToken, _ := a.IssueToken("c-1", RoleCustomer, "")

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", "Bearer " + customerToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rl.Cleanup(time.Now().Add(time.Hour))
	assert.Empty(t, rl.limiters)
}

func TestConcurrencyLimit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	h := ConcurrencyLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
	}), 1)

	go h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	<-entered

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	close(release)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("order: %w", xerrors.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(xerrors.ErrInvalidTransition))
	assert.Equal(t, http.StatusLocked, StatusFor(xerrors.ErrLocked))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("other")))
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	assert.Error(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "a", v.Name)
}

func TestPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=40", nil)
	limit, offset := Page(req)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 40, offset)

	limit, offset = Page(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)
}

func TestInstrument_RecordsRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /orders/{number}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h := Instrument(mux, mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/ORD_1", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	metrics := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `route="GET /orders/{number}"`)
}
