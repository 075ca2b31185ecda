package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/control-assist/internal/batch"
	"github.com/sells-group/control-assist/internal/config"
	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/monitoring"
	"github.com/sells-group/control-assist/pkg/ollama"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// maxBatchControls bounds a synchronous batch request.
const maxBatchControls = 200

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the suggestion HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(newServer(env), cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		if cfg.Monitoring.Enabled && env.Store != nil {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// batchRunner runs a list of controls.
type batchRunner interface {
	Run(ctx context.Context, controls []model.Control, existing []model.ExistingControl) []batch.Result
}

// server holds the dependencies of the HTTP handlers.
type server struct {
	selector batch.Selector
	runner   batchRunner
	source   config.ProviderSource
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
	models   func(ctx context.Context, baseURL string) ([]ollama.Model, error)
}

func newServer(env *appEnv) *server {
	return &server{
		selector: env.Selector,
		runner:   env.Runner,
		source:   env.Source,
		gatherer: env.Registry,
		limiter:  newLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		models:   listLocalModels,
	}
}

// newLimiter returns nil when rps is not positive.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func newRouter(s *server, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(throttle(s.limiter))
		}
		r.Post("/suggestions", s.handleSuggest)
		r.Post("/suggestions/batch", s.handleBatch)
		r.Get("/providers/local/models", s.handleLocalModels)
	})
	return r
}

// throttle rejects requests with 429 once the limiter is exhausted.
func throttle(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type suggestRequest struct {
	Control  model.Control           `json:"control"`
	Existing []model.ExistingControl `json:"existing,omitempty"`
}

func (s *server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Control.ID) == "" {
		writeError(w, http.StatusBadRequest, "control.id is required")
		return
	}

	pc, err := s.source.ProviderConfig(r.Context())
	if err != nil {
		zap.L().Error("load provider config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "provider configuration unavailable")
		return
	}

	sug, err := s.selector.Select(r.Context(), req.Control, req.Existing, pc)
	if err != nil {
		zap.L().Warn("suggestion failed", zap.String("control_id", req.Control.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusOK, sug)
}

type batchRequest struct {
	Controls []model.Control         `json:"controls"`
	Existing []model.ExistingControl `json:"existing,omitempty"`
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case len(req.Controls) == 0:
		writeError(w, http.StatusBadRequest, "controls is required")
		return
	case len(req.Controls) > maxBatchControls:
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d controls per request", maxBatchControls))
		return
	}

	results := s.runner.Run(r.Context(), req.Controls, req.Existing)
	writeJSONStatus(w, http.StatusOK, batchOutput{Summary: batch.Summarize(results), Results: results})
}

func (s *server) handleLocalModels(w http.ResponseWriter, r *http.Request) {
	pc, err := s.source.ProviderConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "provider configuration unavailable")
		return
	}
	models, err := s.models(r.Context(), pc.Local.BaseURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"base_url": pc.Local.BaseURL, "models": models})
}

func listLocalModels(ctx context.Context, baseURL string) ([]ollama.Model, error) {
	var opts []ollama.Option
	if baseURL != "" {
		opts = append(opts, ollama.WithBaseURL(baseURL))
	}
	return ollama.NewClient(append(opts, ollama.WithTimeout(10*time.Second))...).ListModels(ctx)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return eris.Wrap(err, "invalid request body")
	}
	return nil
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
