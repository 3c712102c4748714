package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-saas-billing/internal/config"
	"ai-saas-billing/internal/infra/logging"
	"ai-saas-billing/internal/usecase"
)

// Pinger is anything whose liveness the health endpoint should verify.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	initUC   usecase.InitiateUseCase
	reconUC  usecase.ReconcileUseCase
	refundUC usecase.RefundUseCase
	auth     *AuthManager
	pingers  []Pinger

	resultURL string
	httpSrv   *http.Server
	log       *zerolog.Logger
}

func NewServer(
	cfg config.ServerConfig,
	initUC usecase.InitiateUseCase,
	reconUC usecase.ReconcileUseCase,
	refundUC usecase.RefundUseCase,
	auth *AuthManager,
	resultURL string,
	logger *zerolog.Logger,
	pingers ...Pinger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	s := &Server{
		initUC:    initUC,
		reconUC:   reconUC,
		refundUC:  refundUC,
		auth:      auth,
		pingers:   pingers,
		resultURL: resultURL,
		log:       &l,
	}
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthzHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments", initiateHandler(s.initUC))
		r.Get("/payments/callback", callbackHandler(s.reconUC, s.resultURL))
		r.Post("/payments/webhook/{provider}", webhookHandler(s.reconUC))
		r.Post("/refunds", refundRequestHandler(s.refundUC))

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/refunds", adminRefundsListHandler(s.refundUC))
			r.Post("/refunds/{id}/approve", adminRefundApproveHandler(s.refundUC))
			r.Post("/refunds/{id}/reject", adminRefundRejectHandler(s.refundUC))
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// The chi request id doubles as the trace id for everything downstream.
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
