package handle

import (
	"net/http"
	"strconv"

	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/marketing"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type ContentHandler struct {
	content *services.ContentService
	mylog   logger.Logger
}

func NewContentHandler(content *services.ContentService, mylog logger.Logger) *ContentHandler {
	return &ContentHandler{content: content, mylog: mylog}
}

func (ch *ContentHandler) FAQ() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		items, err := ch.content.FAQ(ctx, caller(r))
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, items)
	}
}

func (ch *ContentHandler) CreateFAQ() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.FAQRequest
		if !decode(w, r, &req) {
			return
		}
		item, err := ch.content.CreateFAQ(r.Context(), req)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, item)
	}
}

func (ch *ContentHandler) UpdateFAQ() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.FAQRequest
		if !decode(w, r, &req) {
			return
		}
		item, err := ch.content.UpdateFAQ(r.Context(), r.PathValue("id"), req)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, item)
	}
}

func (ch *ContentHandler) DeleteFAQ() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ch.content.DeleteFAQ(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (ch *ContentHandler) Articles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		limit, offset := httpx.Page(r)
		list, err := ch.content.Articles(ctx, caller(r), dto.ArticleFilter{
			Status: r.URL.Query().Get("status"),
			Tag:    r.URL.Query().Get("tag"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (ch *ContentHandler) Article() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		a, err := ch.content.Article(ctx, caller(r), r.PathValue("slug"))
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, a)
	}
}

func (ch *ContentHandler) CreateArticle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.ArticleRequest
		if !decode(w, r, &req) {
			return
		}
		a, err := ch.content.CreateArticle(r.Context(), id.UserID, req)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, a)
	}
}

func (ch *ContentHandler) UpdateArticle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.ArticleRequest
		if !decode(w, r, &req) {
			return
		}
		a, err := ch.content.UpdateArticle(r.Context(), r.PathValue("id"), req)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, a)
	}
}

func (ch *ContentHandler) SetPublished(published bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ch.content.SetPublished(r.Context(), r.PathValue("id"), published)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, a)
	}
}

func (ch *ContentHandler) DeleteArticle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ch.content.DeleteArticle(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (ch *ContentHandler) Banners() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		list, err := ch.content.Banners(ctx, caller(r))
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

// SaveBanner creates on POST and replaces the banner named in the path on PUT.
func (ch *ContentHandler) SaveBanner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b marketing.Banner
		if !decode(w, r, &b) {
			return
		}
		b.ID = r.PathValue("id")
		saved, err := ch.content.SaveBanner(r.Context(), b)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, savedStatus(b.ID), saved)
	}
}

func (ch *ContentHandler) DeleteBanner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ch.content.DeleteBanner(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (ch *ContentHandler) Popups() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		list, err := ch.content.Popups(ctx, caller(r))
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (ch *ContentHandler) SavePopup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p marketing.Popup
		if !decode(w, r, &p) {
			return
		}
		p.ID = r.PathValue("id")
		saved, err := ch.content.SavePopup(r.Context(), p)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, savedStatus(p.ID), saved)
	}
}

func (ch *ContentHandler) DeletePopup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ch.content.DeletePopup(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (ch *ContentHandler) Promos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := ch.content.Promos(r.Context())
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (ch *ContentHandler) SavePromo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p marketing.PromoCode
		if !decode(w, r, &p) {
			return
		}
		code := r.PathValue("code")
		if code != "" {
			p.Code = code
		}
		saved, err := ch.content.SavePromo(r.Context(), p, code == "")
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, savedStatus(code), saved)
	}
}

func (ch *ContentHandler) DeletePromo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ch.content.DeletePromo(r.Context(), r.PathValue("code")); err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (ch *ContentHandler) CheckPromo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subtotal, err := strconv.ParseInt(r.URL.Query().Get("subtotal_cents"), 10, 64)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, xerrors.ErrInvalidInput)
			return
		}
		res, err := ch.content.CheckPromo(r.Context(), r.PathValue("code"), subtotal)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, res)
	}
}

// savedStatus is 201 for a new resource and 200 for a replaced one.
func savedStatus(pathID string) int {
	if pathID == "" {
		return http.StatusCreated
	}
	return http.StatusOK
}
