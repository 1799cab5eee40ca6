/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tutoring billing and payroll server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Configure structured logging
  3. Initialize SQLite store
  4. Create API handler and reminder scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags override environment variables, which override defaults.

  Flag        Env                Default
  -port       PORT               8080
  -db         DATABASE_PATH      tutorbill.db (":memory:" for in-memory)
  -log-level  LOG_LEVEL          info
  -webhook    NOTIFY_WEBHOOK_URL (unset: notifications logged only)
  -reminders  REMINDERS_ENABLED  true

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reminder scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/tutorbill.db"

  # Run with in-memory database and debug logging
  ./server -db=":memory:" -log-level=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/reminders.go: Overdue sweep scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/brightpath/tutorbill/api"
	"github.com/brightpath/tutorbill/notify"
	"github.com/brightpath/tutorbill/store/sqlite"
)

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func main() {
	// .env is optional; flags and real env vars win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DATABASE_PATH", "tutorbill.db"), "SQLite database path")
	logLevel := flag.String("log-level", envString("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	webhookURL := flag.String("webhook", envString("NOTIFY_WEBHOOK_URL", ""), "Webhook URL for outbound notifications")
	remindersOn := flag.Bool("reminders", envBool("REMINDERS_ENABLED", true), "Enable the overdue reminder scheduler")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("unknown log level %q, using info", *logLevel)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	var notifier notify.Notifier = &notify.Console{Log: log}
	if *webhookURL != "" {
		notifier = notify.NewWebhook(*webhookURL, log)
	}

	handler := api.NewHandler(store, log, notifier)
	router := api.NewRouter(handler)

	scheduler := api.NewReminderScheduler(store, notifier, log)
	scheduler.Enabled = *remindersOn
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": *port, "db": *dbPath}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	scheduler.Stop()

	log.Info("server stopped")
}
