// cmd/api/serve.go
// HTTP and websocket server

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/imadgeboyega/heartwing-backend/internal/auth"
	"github.com/imadgeboyega/heartwing-backend/internal/common/database"
	"github.com/imadgeboyega/heartwing-backend/internal/dating"
	"github.com/imadgeboyega/heartwing-backend/internal/messaging"
	notifications "github.com/imadgeboyega/heartwing-backend/internal/notification"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Apply schema migrations before serving")
	serveCmd.Flags().Bool("no-jobs", false, "Do not run the scheduled ghosting and compatibility jobs")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE:  runServe,
}

var startTime = time.Now()

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hub *messaging.Hub
	a, err := buildApp(ctx, cfg, func(offline *notifications.Service) dating.Publisher {
		hub = messaging.NewHub(offline)
		return hub
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate && a.db != nil {
		if err := database.RunMigrations(ctx, a.db); err != nil {
			return err
		}
	}

	go hub.Run()
	log.Println("WebSocket hub started")

	sessions := messaging.NewSessionBuffer(cfg.MaxSessionSamples, cfg.MaxOpenSessions, cfg.SyncSessionTTL)
	go sessions.Run(ctx, time.Minute)

	if noJobs, _ := cmd.Flags().GetBool("no-jobs"); !noJobs {
		dating.NewScheduler(a.service, cfg.GhostingSweepInterval, cfg.CompatibilityRefreshHour).Start(ctx)
		log.Printf("Ghosting sweep every %s, compatibility refresh daily at %02d:00", cfg.GhostingSweepInterval, cfg.CompatibilityRefreshHour)
	}

	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	dating.RegisterRoutes(router, dating.NewHandler(a.service), authMiddleware)
	messaging.RegisterRoutes(router, messaging.NewHandler(a.service, hub, sessions, messaging.NewUpgrader(cfg.AllowedOrigins)), authMiddleware)
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ops := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.OpsPort),
		Handler: opsRouter(hub),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("Server starting on %s (environment: %s)", srv.Addr, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		log.Printf("Ops server starting on %s", ops.Addr)
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err = <-errCh:
		log.Printf("Server failed: %v", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Printf("Server forced to shutdown: %v", serr)
	}
	if serr := ops.Shutdown(shutdownCtx); serr != nil {
		log.Printf("Ops server forced to shutdown: %v", serr)
	}

	log.Println("Shutting down messaging hub...")
	hub.Shutdown()

	log.Println("Server exited gracefully")
	return err
}

// opsRouter serves health and Prometheus metrics on the internal port
func opsRouter(hub *messaging.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheck)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":             "ready",
			"active_connections": hub.GetActiveConnections(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Printf("%s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
