/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the forecast split server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load validation thresholds (defaults, overridden by -config)
  3. Initialize SQLite store
  4. Create API handler and revalidation scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: splits.db)
               Use ":memory:" for in-memory database
  -config      YAML file with validation thresholds and hints (optional)
  -revalidate  Interval between revalidation passes, 0 disables (default: 1h)
  -origins     Comma-separated CORS origins (optional)

SIGNALS:
  SIGHUP:          Reload -config and revalidate every saved plan
  SIGINT/SIGTERM:  Graceful shutdown
    1. Stop accepting new connections
    2. Wait for active requests to complete (30s timeout)
    3. Stop the scheduler and close the database
    4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/splits.db"

  # Run with custom thresholds
  ./server -config="./validation.yaml"

  # Run with in-memory database on a different port
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - split/config.go: Config file format
  - store/sqlite/sqlite.go: Database implementation
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
	"strings"
	"syscall"
	"time"

	"github.com/warp/forecast-split/api"
	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "splits.db", "SQLite database path")
	configPath := flag.String("config", "", "YAML file with validation thresholds")
	revalidate := flag.Duration("revalidate", time.Hour, "Interval between revalidation passes (0 disables)")
	origins := flag.String("origins", "", "Comma-separated CORS origins")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Validation thresholds: train>=%d val>=%d fold-train>=%d",
		cfg.MinTrainPoints, cfg.MinValPoints, cfg.MinFoldTrainPoints)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg)

	scheduler := api.NewRevalidationScheduler(store, handler)
	scheduler.CheckInterval = *revalidate
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	var routerOpts api.RouterOptions
	if *origins != "" {
		routerOpts.AllowedOrigins = strings.Split(*origins, ",")
	}
	router := api.NewRouter(handler, routerOpts)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api, metrics at /metrics", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for a reload or interrupt signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for s := range sig {
		if s != syscall.SIGHUP {
			break
		}
		reload(*configPath, handler, scheduler)
	}

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(path string) (split.ValidationConfig, error) {
	if path == "" {
		return split.DefaultValidationConfig(), nil
	}
	return split.LoadConfig(path)
}

// reload swaps in the thresholds from path and revalidates saved plans. A
// bad file keeps the previous thresholds.
func reload(path string, handler *api.Handler, scheduler *api.RevalidationScheduler) {
	if path == "" {
		log.Println("SIGHUP received but no -config was given, nothing to reload")
		return
	}
	cfg, err := split.LoadConfig(path)
	if err != nil {
		log.Printf("Config reload failed, keeping previous thresholds: %v", err)
		return
	}
	handler.SetConfig(cfg)
	log.Printf("Config reloaded from %s", path)
	scheduler.RunNow(context.Background())
}
