package handle

import (
	"net/http"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/payouts"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type PayoutHandler struct {
	payouts core.IPayouts
	mylog   logger.Logger
}

func NewPayoutHandler(p core.IPayouts, mylog logger.Logger) *PayoutHandler {
	return &PayoutHandler{payouts: p, mylog: mylog}
}

func (ph *PayoutHandler) Due() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		list, err := ph.payouts.DueList(ctx, r.URL.Query().Get("payee_type"))
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (ph *PayoutHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		q := r.URL.Query()
		limit, offset := httpx.Page(r)
		list, err := ph.payouts.List(ctx, payouts.Filter{
			PayeeType: q.Get("payee_type"),
			PayeeID:   q.Get("payee_id"),
			Status:    q.Get("status"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (ph *PayoutHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ph.payouts.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, p)
	}
}

func (ph *PayoutHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req payouts.CreateRequest
		if !decode(w, r, &req) {
			return
		}
		p, err := ph.payouts.Create(r.Context(), req, id.UserID)
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, p)
	}
}

// Transition serves approve, reject and pay; the target status is fixed per route.
func (ph *PayoutHandler) Transition(to string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.StatusRequest
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}
		p, err := ph.payouts.Transition(r.Context(), r.PathValue("id"), to, id.UserID, req.Note)
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, p)
	}
}

// MySummary is the caller's own balance as a restaurant, driver or affiliate.
func (ph *PayoutHandler) MySummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		payeeType, payeeID, err := services.PayeeFor(id)
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}

		ctx, cancel := withWait(r)
		defer cancel()

		summary, err := ph.payouts.Summary(ctx, payeeType, payeeID)
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		history, err := ph.payouts.List(ctx, payouts.Filter{PayeeType: payeeType, PayeeID: payeeID, Limit: 20})
		if err != nil {
			writeError(w, ph.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, map[string]any{
			"summary": summary,
			"payouts": history,
		})
	}
}
