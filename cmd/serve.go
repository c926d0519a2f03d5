package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
	"github.com/simargl-labs/content-pipeline/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only ops API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tier := quota.Tier(cfg.Quota.NormalizedTier())
		ledger := quota.NewLedger(st, tier)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/items", func(w http.ResponseWriter, r *http.Request) {
			status := model.ContentStatus(r.URL.Query().Get("status"))
			if status == "" {
				status = model.StatusDiscovered
			}
			items, err := st.ListContentByStatus(r.Context(), status, 200)
			if err != nil {
				writeError(w, err)
				return
			}
			if items == nil {
				items = []model.ContentItem{}
			}
			writeJSON(w, http.StatusOK, items)
		})

		r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			item, err := st.GetContentItem(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			if item == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
				return
			}
			writeJSON(w, http.StatusOK, item)
		})

		r.Get("/api/items/{id}/insights", func(w http.ResponseWriter, r *http.Request) {
			insights, err := st.ListInsights(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			if insights == nil {
				insights = []model.InsightRecord{}
			}
			writeJSON(w, http.StatusOK, insights)
		})

		r.Get("/api/items/{id}/research", func(w http.ResponseWriter, r *http.Request) {
			results, err := st.ListResearchResults(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			if results == nil {
				results = []model.ResearchResult{}
			}
			writeJSON(w, http.StatusOK, results)
		})

		r.Get("/api/quota/{model}", func(w http.ResponseWriter, r *http.Request) {
			snap, err := ledger.Usage(r.Context(), chi.URLParam(r, "model"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Get("/api/violations", func(w http.ResponseWriter, r *http.Request) {
			filter := store.ViolationFilter{Model: r.URL.Query().Get("model"), Limit: 100}
			violations, err := st.ListQuotaViolations(r.Context(), filter)
			if err != nil {
				writeError(w, err)
				return
			}
			if violations == nil {
				violations = []model.QuotaViolation{}
			}
			writeJSON(w, http.StatusOK, violations)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down ops server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("ops server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("ops api request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured server port")
	rootCmd.AddCommand(serveCmd)
}
