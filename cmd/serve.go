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

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scoring"
	"github.com/sells-group/leadscout/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", serverPort()),
			Handler:           newRouter(ctx, env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func serverPort() int {
	if servePort != 0 {
		return servePort
	}
	return cfg.Server.Port
}

// newRouter builds the API surface. Job submission is asynchronous: POST
// /jobs returns 202 immediately and the job runs in the background under the
// server's lifetime context.
func newRouter(ctx context.Context, env *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/profiles", func(w http.ResponseWriter, _ *http.Request) {
		out := make([]scoring.Profile, 0, len(env.Profiles))
		for _, name := range scoring.Names(env.Profiles) {
			out = append(out, env.Profiles[name])
		}
		respondJSON(w, http.StatusOK, out)
	})

	r.Post("/jobs", func(w http.ResponseWriter, req *http.Request) {
		var query model.Query
		if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		job, err := env.Pipeline.Submit(req.Context(), query)
		if err != nil {
			if model.IsValidationError(err) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, "submit failed")
			zap.L().Error("job submit failed", zap.Error(err))
			return
		}

		go func() {
			if err := env.Pipeline.Run(ctx, job); err != nil {
				zap.L().Error("background job failed",
					zap.String("job_id", job.ID),
					zap.Error(err))
			}
		}()

		respondJSON(w, http.StatusAccepted, job)
	})

	r.Get("/jobs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.JobFilter{Limit: 20}
		if s := req.URL.Query().Get("status"); s != "" {
			filter.Status = model.JobStatus(s)
		}
		jobs, err := env.Store.ListJobs(req.Context(), filter)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "list jobs failed")
			zap.L().Error("list jobs failed", zap.Error(err))
			return
		}
		respondJSON(w, http.StatusOK, jobs)
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		job, err := env.Store.GetJob(req.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "job not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "get job failed")
			zap.L().Error("get job failed", zap.String("job_id", id), zap.Error(err))
			return
		}

		out := struct {
			*model.Job
			Progress any `json:"progress,omitempty"`
		}{Job: job}
		if snap, ok := env.Pipeline.Progress(id); ok {
			out.Progress = snap
		}
		respondJSON(w, http.StatusOK, out)
	})

	r.Get("/jobs/{id}/leads", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		job, err := env.Store.GetJob(req.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusNotFound, "job not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "get job failed")
			return
		}
		leads, err := env.Store.ListLeads(req.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "list leads failed")
			zap.L().Error("list leads failed", zap.String("job_id", id), zap.Error(err))
			return
		}
		if err := orderLeads(req.Context(), env.Store, job.Query, leads); err != nil {
			respondError(w, http.StatusInternalServerError, "order leads failed")
			zap.L().Error("order leads failed", zap.String("job_id", id), zap.Error(err))
			return
		}
		respondJSON(w, http.StatusOK, leads)
	})

	r.Post("/jobs/{id}/rescore", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		var body struct {
			Profile string           `json:"profile"`
			Weights *scoring.Weights `json:"weights"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// Either a named profile or explicit weights, not both.
		var (
			updated     int
			err         error
			profileName string
		)
		switch {
		case body.Weights != nil && body.Profile != "":
			respondError(w, http.StatusBadRequest, "pass either profile or weights, not both")
			return
		case body.Weights != nil:
			custom := scoring.Profile{Name: "custom", Weights: *body.Weights}
			if err := custom.Validate(); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			profileName = custom.Name
			updated, err = env.Pipeline.RescoreWith(req.Context(), id, custom)
		case body.Profile != "":
			profileName = body.Profile
			updated, err = env.Pipeline.Rescore(req.Context(), id, body.Profile)
		default:
			respondError(w, http.StatusBadRequest, "profile or weights is required")
			return
		}
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				respondError(w, http.StatusNotFound, "job not found")
			default:
				respondError(w, http.StatusConflict, err.Error())
			}
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"job_id":  id,
			"profile": profileName,
			"updated": updated,
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
