package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deliveryhub/internal/xpkg/logger"
)

const shutdownTimeout = 20 * time.Second

// Serve runs an HTTP server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, port int, handler http.Handler, mylog logger.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		mylog.Action("server_started").Info("server is running", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}
	mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

// Health answers liveness checks.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Stack wraps mux with metrics, a concurrency limit, authentication and per-caller rate limiting.
// rl may be nil.
func Stack(mux *http.ServeMux, auth *Authenticator, rl *RateLimiter, maxConcurrent int) http.Handler {
	var h http.Handler = mux
	if rl != nil {
		h = rl.Handler(h)
	}
	h = auth.Authenticate(h)
	h = ConcurrencyLimit(h, maxConcurrent)
	return Instrument(mux, h)
}
