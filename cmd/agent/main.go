package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/driver-dispatch/internal/api"
	"github.com/example/driver-dispatch/internal/backend"
	"github.com/example/driver-dispatch/internal/config"
	"github.com/example/driver-dispatch/internal/ingest"
	"github.com/example/driver-dispatch/internal/location"
	"github.com/example/driver-dispatch/internal/logging"
	"github.com/example/driver-dispatch/internal/models"
	"github.com/example/driver-dispatch/internal/session"
	"github.com/example/driver-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// backend selection mirrors config precedence: real HTTP backend,
	// then a Redis rig, then the in-process demo backend
	var be backend.API
	switch {
	case cfg.BackendURL != "":
		be = backend.NewHTTPBackend(cfg.BackendURL)
	case cfg.RedisAddr != "":
		be = backend.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword)
	default:
		mem := backend.NewMemoryBackend()
		seedDemoRequests(mem)
		be = mem
		logger.Info("no backend configured, using in-memory demo backend")
	}

	var journal storage.Journal
	if cfg.PGDSN != "" {
		pj, err := storage.NewPostgresJournal(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres journal: %v", err)
		}
		if cfg.RunMigrations {
			if err := pj.Migrate(); err != nil {
				log.Fatalf("journal migration: %v", err)
			}
			logger.Info("journal migration applied")
		}
		defer pj.Close()
		journal = pj
	} else {
		journal = storage.NewMemoryJournal()
	}

	var producer *ingest.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	src := location.NewSimSource(models.Coord{Lat: 40.7128, Lon: -74.0060}, 2*time.Second)
	ctrl := session.NewController(cfg, be, src, journal, producer, logger)
	srv := api.NewServer(ctrl, logger)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dispatch agent listening", "addr", cfg.HTTPAddr, "driver_id", cfg.DriverID)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := ctrl.GoOffline(shutdownCtx); err != nil {
		logger.Warn("offline on shutdown", "error", err)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}

func seedDemoRequests(mem *backend.MemoryBackend) {
	for i := 1; i <= 3; i++ {
		mem.Seed(models.PickupRequest{
			ID: fmt.Sprintf("demo-%d", i),
			Pickup: models.Stop{
				Address: fmt.Sprintf("%d Main St", 100*i),
				Coords:  models.Coord{Lat: 40.71 + float64(i)*0.01, Lon: -74.00},
				Time:    "10 min",
			},
			Dropoff: models.Stop{
				Address: fmt.Sprintf("%d Broadway", 200*i),
				Coords:  models.Coord{Lat: 40.75 + float64(i)*0.01, Lon: -73.99},
				Time:    "25 min",
			},
			Price:     fmt.Sprintf("$%d.50", 10+i*3),
			Item:      models.Item{Description: "Package", Type: "small", NeedsHelp: false},
			Customer:  models.Customer{Name: fmt.Sprintf("Customer %d", i), Rating: 4.5},
			ExpiresAt: time.Now().Add(30 * time.Minute),
		})
	}
}
