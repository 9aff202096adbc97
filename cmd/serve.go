package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crosssell/internal/customer"
)

var servePort int

// serverInfo is the static introspection data reported by /, /health and
// /debug.
type serverInfo struct {
	DataSource      string
	Provider        string
	KeyConfigured   bool
	DatabaseEnabled bool
	CSVPath         string
	Engine          string
}

func (i serverInfo) csvExists() bool {
	if i.CSVPath == "" {
		return false
	}
	_, err := os.Stat(i.CSVPath)
	return err == nil
}

// routerDeps is everything the HTTP handlers need. Recommender and Lister
// are nil when the pipeline failed to initialize; the server still starts
// so introspection endpoints can report the problem.
type routerDeps struct {
	Recommender Recommender
	Lister      customer.Lister
	Gatherer    prometheus.Gatherer
	Info        serverInfo
}

const requestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response failed", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// buildRouter creates the HTTP router with all API routes registered.
func buildRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
	}))

	info := deps.Info

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":           "Cross-Sell/Upsell Recommendation API is running",
			"status":            "healthy",
			"data_source":       info.DataSource,
			"agent_initialized": deps.Recommender != nil,
			"endpoints": map[string]string{
				"recommendations": "/recommendation?customer_id=<id>",
				"health":          "/health",
				"customers":       "/customers",
				"metrics":         "/metrics",
			},
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "healthy",
			"provider":          info.Provider,
			"openai_configured": info.KeyConfigured,
			"database_enabled":  info.DatabaseEnabled,
			"csv_file_exists":   info.csvExists(),
			"agent_ready":       deps.Recommender != nil,
		})
	})

	r.Get("/debug", func(w http.ResponseWriter, r *http.Request) {
		wd, _ := os.Getwd()
		keyState := "NOT SET"
		if info.KeyConfigured {
			keyState = "***SET***"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"agent_initialized": deps.Recommender != nil,
			"provider_key_set":  info.KeyConfigured,
			"csv_exists":        info.csvExists(),
			"use_database":      info.DatabaseEnabled,
			"working_dir":       wd,
			"engine":            info.Engine,
			"env_vars": map[string]string{
				"PROVIDER_API_KEY": keyState,
				"DATA_SOURCE":      info.DataSource,
			},
		})
	})

	r.Get("/customers", func(w http.ResponseWriter, r *http.Request) {
		if deps.Lister == nil {
			writeDetail(w, http.StatusInternalServerError, "Error loading customer list: data source not initialized")
			return
		}
		customers, err := deps.Lister.ListCustomers(r.Context())
		if err != nil {
			zap.L().Error("list customers failed", zap.Error(err))
			writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Error loading customer list: %v", err))
			return
		}
		zap.L().Info("listed customers", zap.Int("count", len(customers)))
		writeJSON(w, http.StatusOK, map[string]any{
			"customers":   customers,
			"total_count": len(customers),
		})
	})

	recommend := func(w http.ResponseWriter, r *http.Request, customerID string) {
		if deps.Recommender == nil {
			zap.L().Error("recommendation requested but pipeline is not initialized")
			writeDetail(w, http.StatusInternalServerError, "Agent not initialized properly")
			return
		}
		customerID = strings.TrimSpace(customerID)
		if customerID == "" {
			writeDetail(w, http.StatusBadRequest, "Customer ID cannot be empty")
			return
		}

		resp := deps.Recommender.Run(r.Context(), customerID)
		if !resp.Success {
			writeDetail(w, http.StatusNotFound, resp.Error)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}

	r.Get("/recommendation", func(w http.ResponseWriter, r *http.Request) {
		recommend(w, r, r.URL.Query().Get("customer_id"))
	})
	r.Get("/recommendation/{customerID}", func(w http.ResponseWriter, r *http.Request) {
		recommend(w, r, chi.URLParam(r, "customerID"))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func currentServerInfo(dataSource string) serverInfo {
	key := cfg.OpenAI.Key
	if cfg.Completion.Provider == "anthropic" {
		key = cfg.Anthropic.Key
	}
	return serverInfo{
		DataSource:      dataSource,
		Provider:        cfg.Completion.Provider,
		KeyConfigured:   key != "",
		DatabaseEnabled: cfg.Source.Driver != "csv",
		CSVPath:         cfg.Source.CSVPath,
		Engine:          cfg.Engine.Kind,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		deps := routerDeps{Info: currentServerInfo(cfg.Source.Driver)}
		env, err := initPipeline(ctx, "serve")
		if err != nil {
			// Keep serving so /health and /debug can report the failure.
			zap.L().Error("pipeline initialization failed", zap.Error(err))
			deps.Gatherer = prometheus.DefaultGatherer
		} else {
			defer env.Close()
			deps.Recommender = env.Recommender
			deps.Lister = env.Source
			deps.Gatherer = env.Registry
			deps.Info = currentServerInfo(env.Source.Name())
		}

		port := cfg.Server.Port
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
