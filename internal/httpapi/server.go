package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"

	"wxdata-server/internal/config"
	"wxdata-server/internal/observability"
)

func NewServer(cfg config.Config, handler http.Handler, metrics *observability.Metrics) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           wrap(cfg, handler, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// wrap applies the middleware chain, outermost first: logging, panic
// recovery, then CORS when origins are configured.
func wrap(cfg config.Config, handler http.Handler, metrics *observability.Metrics) http.Handler {
	h := handler
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(h)
	}
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(cfg.AppEnv == "dev"))(h)
	return requestLogger(h, metrics)
}
