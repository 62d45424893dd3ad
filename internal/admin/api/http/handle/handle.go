package handle

import (
	"context"
	"net/http"
	"time"

	"deliveryhub/internal/admin/app/core"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

func writeError(w http.ResponseWriter, mylog logger.Logger, err error) {
	httpx.WriteError(w, mylog, err)
}

func identity(w http.ResponseWriter, r *http.Request) (httpx.Identity, bool) {
	id, ok := httpx.IdentityFrom(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, xerrors.ErrUnauthorized)
	}
	return id, ok
}

// caller is the identity on public routes; anonymous callers get the zero value.
func caller(r *http.Request) httpx.Identity {
	id, _ := httpx.IdentityFrom(r.Context())
	return id
}

func withWait(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), core.WaitTime*time.Second)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(r, v); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
