/*
main.go - Application entry point

PURPOSE:
  Starts the budget control server: configuration, SQLite store, seed
  data, HTTP router, graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and the environment configuration
  2. Parse command-line flags (-port, -db override the environment)
  3. Open the SQLite store and run migrations
  4. Seed users, the project plan, and the reference sheets (idempotent)
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: PORT or 8001)
  -db      SQLite database path (default: DB_PATH or ./data/budget.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

EXAMPLES:
  # Run with the seed spreadsheets
  DATA_DIR=./data ./server -db="./data/budget.db"

  # Run with an in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - seed/seed.go: Initial data
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taneng/budget-control/api"
	"github.com/taneng/budget-control/config"
	"github.com/taneng/budget-control/seed"
	"github.com/taneng/budget-control/store/sqlite"
)

func main() {
	// .env is optional; the environment wins when both are set.
	_ = godotenv.Load()
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if err := seed.Run(context.Background(), store, cfg.DataDir); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	handler := api.NewHandler(store, cfg)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
