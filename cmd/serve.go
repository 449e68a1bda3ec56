package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/search"
)

var servePort int

// searcher is what the HTTP API needs from the search service.
type searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (*search.Response, error)
	Resolve(ctx context.Context, input string) (*model.CommuneCoordinates, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSearch(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildMux(env.Service, cfg.Server.CORSOrigins, searchTimeout())
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

// resolvePort prefers the flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// buildMux mounts the API routes. svc may be nil, in which case the
// search endpoints answer 503.
func buildMux(svc searcher, origins []string, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", func(w http.ResponseWriter, req *http.Request) {
			if svc == nil {
				writeError(w, http.StatusServiceUnavailable, "search service unavailable")
				return
			}

			var raw model.RawRequest
			if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if raw.Commune == "" {
				writeError(w, http.StatusBadRequest, "commune is required")
				return
			}
			sr, err := model.NewSearchRequest(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(req.Context(), timeout)
			defer cancel()

			resp, err := svc.Search(ctx, sr)
			if err != nil {
				zap.L().Error("search request failed",
					zap.String("commune", sr.Commune),
					zap.String("request_id", middleware.GetReqID(req.Context())),
					zap.Error(err),
				)
				writeError(w, statusFor(err), "search service unavailable")
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/communes/{input}", func(w http.ResponseWriter, req *http.Request) {
			if svc == nil {
				writeError(w, http.StatusServiceUnavailable, "search service unavailable")
				return
			}
			input := chi.URLParam(req, "input")

			coords, err := svc.Resolve(req.Context(), input)
			if err != nil {
				writeError(w, statusFor(err), "search service unavailable")
				return
			}
			if coords == nil {
				writeError(w, http.StatusNotFound, fmt.Sprintf("commune %q not found", input))
				return
			}
			writeJSON(w, http.StatusOK, coords)
		})
	})

	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// startServer serves handler on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg != nil {
		srv.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second
		srv.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
