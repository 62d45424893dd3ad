package handle

import (
	"net/http"

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
