package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/agroclima/weather-collector/internal/api/http"
	"github.com/agroclima/weather-collector/internal/config"
	"github.com/agroclima/weather-collector/internal/scheduler"
	"github.com/agroclima/weather-collector/internal/store"
	"github.com/agroclima/weather-collector/internal/weather"
	"github.com/agroclima/weather-collector/internal/weather/providers"
	"github.com/agroclima/weather-collector/pkg/logger"
)

func main() {
	mode := flag.String("mode", "serve", "run mode: serve, current or historical")
	years := flag.Int("years", 0, "span for historical mode (defaults to the configured maximum)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}
	log := logger.Named("main")
	ctx := context.Background()

	regions, err := config.LoadRegions(cfg.RegionsFile, cfg.GeocoderAPIKey)
	if err != nil {
		log.Error(ctx, "failed to load regions", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "regions loaded", logger.Int("count", len(regions)))

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	primary := providers.NewOpenWeatherClient(httpClient, cfg.OpenWeatherAPIKey)
	backup := providers.NewINMETClient(httpClient, cfg.INMETToken)
	partitions := store.New(cfg.DataDir)

	engine := weather.NewEngine(primary, backup, partitions,
		weather.WithWorkers(cfg.Workers),
		weather.WithHistoricalMaxYears(cfg.HistoricalMaxYears),
	)

	switch *mode {
	case "current":
		runOnce(ctx, engine, regions, weather.CurrentWindow(time.Now().UTC(), cfg.CurrentWindowDays))
	case "historical":
		span := cfg.HistoricalMaxYears
		if *years > 0 && *years < span {
			span = *years
		}
		runOnce(ctx, engine, regions, weather.HistoricalWindow(time.Now().UTC(), span))
	case "serve":
		serve(cfg, engine, regions, partitions)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(1)
	}
}

// runOnce performs a single collection and prints a per-region summary.
func runOnce(ctx context.Context, engine *weather.Engine, regions []weather.Region, window weather.Window) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes, err := engine.Run(ctx, regions, window)
	if err != nil {
		logger.Named("main").Error(ctx, "collection run incomplete", logger.Error(err))
	}
	for regionID, out := range outcomes {
		fmt.Printf("%s: %s (source=%s accepted=%d duplicate=%d invalid=%d)",
			regionID, out.Status, out.Source, out.Accepted, out.RejectedDuplicate, out.RejectedInvalid)
		if out.Error != "" {
			fmt.Printf(" error=%s", out.Error)
		}
		fmt.Println()
	}
	if err != nil {
		os.Exit(1)
	}
}

// serve runs the periodic scheduler plus the read-only HTTP surface.
func serve(cfg *config.AppConfig, engine *weather.Engine, regions []weather.Region, partitions *store.PartitionStore) {
	log := logger.Named("main")
	ctx := context.Background()

	sched := scheduler.New(engine, regions, cfg.FetchInterval, cfg.CurrentWindowDays)
	if err := sched.Start(); err != nil {
		log.Error(ctx, "failed to start scheduler", logger.Error(err))
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-collector",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-collector",
		})
	})

	httpapi.RegisterRoutes(app, engine, partitions)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error(ctx, "fiber server stopped", logger.Error(err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error(ctx, "error during shutdown", logger.Error(err))
	}
}
