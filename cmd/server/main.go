package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/orderflow/internal/api"
	"github.com/darkden-lab/orderflow/internal/audit"
	"github.com/darkden-lab/orderflow/internal/auth"
	"github.com/darkden-lab/orderflow/internal/broker"
	"github.com/darkden-lab/orderflow/internal/broker/relay"
	"github.com/darkden-lab/orderflow/internal/config"
	"github.com/darkden-lab/orderflow/internal/db"
	"github.com/darkden-lab/orderflow/internal/dispatch"
	mw "github.com/darkden-lab/orderflow/internal/middleware"
	"github.com/darkden-lab/orderflow/internal/restaurant"
	"github.com/darkden-lab/orderflow/internal/service"
	"github.com/darkden-lab/orderflow/internal/store"
	"github.com/darkden-lab/orderflow/internal/stream"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborator store and transition log
	var (
		st       store.Store
		auditLog audit.Log
	)
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("WARNING: database unavailable: %v (using in-memory store)", err)
		st = store.NewMemory()
		auditLog = audit.NewMemory(0)
	} else {
		defer database.Close()
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Printf("WARNING: migrations failed: %v", err)
		}
		st = store.NewPostgres(database.Pool)
		auditLog = audit.NewStore(database.Pool)
	}
	defer st.Close()

	// Event broker, optionally relayed to other nodes
	b := broker.New(cfg.StreamBufferSize)
	rl, err := relay.NewFromConfig(cfg, b)
	if err != nil {
		log.Printf("WARNING: relay setup failed: %v (running single-node)", err)
	}
	if rl != nil {
		defer rl.Close() //nolint:errcheck // best-effort cleanup on shutdown
		b.SetRelay(rl)
	}

	router := dispatch.NewRouter(b)
	svc := service.New(st, router, auditLog)

	// Opening hours reconciler
	reconciler := restaurant.NewReconciler(st, router, cfg.HoursReconcileInterval)
	go reconciler.Run(ctx)

	// JWT
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Router
	r := mux.NewRouter()
	r.Use(mw.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Streams (auth handled inside handler)
	streamHandler := stream.NewHandler(b, jwtService, cfg.StreamHeartbeat, cfg.AllowedOrigins)
	streamHandler.RegisterRoutes(r)

	protected := api.NewHandlers(svc).Mount(r, jwtService)
	audit.NewHandlers(auditLog).RegisterRoutes(protected)

	// HTTP Server. Streaming responses extend their own write deadline.
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        mw.CORS(cfg.AllowedOrigins, r),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down server...")
		cancel()
		// Closing the broker ends every open stream so Shutdown can drain.
		if err := b.Close(); err != nil {
			log.Printf("WARNING: broker close: %v", err)
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server shutdown failed: %v", err)
		}
	}()

	log.Printf("Starting server on :%s (node %s)", cfg.Port, cfg.NodeID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
