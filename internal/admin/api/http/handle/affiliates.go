package handle

import (
	"net/http"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type AffiliateHandler struct {
	referrals core.IReferrals
	mylog     logger.Logger
}

func NewAffiliateHandler(referrals core.IReferrals, mylog logger.Logger) *AffiliateHandler {
	return &AffiliateHandler{referrals: referrals, mylog: mylog}
}

func (ah *AffiliateHandler) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		a, err := ah.referrals.Join(r.Context(), id.UserID)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, a)
	}
}

func (ah *AffiliateHandler) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		ctx, cancel := withWait(r)
		defer cancel()

		o, err := ah.referrals.Overview(ctx, id.UserID)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, o)
	}
}

func (ah *AffiliateHandler) Refer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.ReferRequest
		if !decode(w, r, &req) {
			return
		}
		ref, err := ah.referrals.Refer(r.Context(), id.UserID, req.Code)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, ref)
	}
}

func (ah *AffiliateHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		limit, offset := httpx.Page(r)
		list, err := ah.referrals.ListAffiliates(ctx, limit, offset)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (ah *AffiliateHandler) SetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.StatusRequest
		if !decode(w, r, &req) {
			return
		}
		a, err := ah.referrals.SetAffiliateStatus(r.Context(), r.PathValue("user_id"), req.Status)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, a)
	}
}
