package handle

import (
	"net/http"

	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type StatsHandler struct {
	stats *services.StatsService
	mylog logger.Logger
}

func NewStatsHandler(stats *services.StatsService, mylog logger.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, mylog: mylog}
}

func (sh *StatsHandler) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		s, err := sh.stats.Dashboard(ctx)
		if err != nil {
			writeError(w, sh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, s)
	}
}
