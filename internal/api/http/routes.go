// Package httpapi exposes the read-only HTTP surface: health, the latest
// collection report, persisted observations, and Prometheus metrics.
package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agroclima/weather-collector/internal/store"
	"github.com/agroclima/weather-collector/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, engine *weather.Engine, partitions *store.PartitionStore) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/report", func(c *fiber.Ctx) error {
		report := engine.LastReport()
		if report == nil {
			return fiber.NewError(fiber.StatusNotFound, "no collection run has completed yet")
		}
		return c.JSON(report)
	})

	v1.Get("/observations", func(c *fiber.Ctx) error {
		var req observationsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		source, ok := weather.ParseSource(req.Source)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "source must be one of: openweather, inmet")
		}

		observations, err := partitions.ReadRange(req.Region, source, req.From, req.To)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read observations")
		}
		return c.JSON(fiber.Map{
			"region":       req.Region,
			"source":       source,
			"from":         req.From,
			"to":           req.To,
			"observations": observations,
		})
	})
}

// observationsQuery holds query parameters for the observations endpoint.
type observationsQuery struct {
	Region string    `validate:"required"`
	Source string    `validate:"required"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}

func (q *observationsQuery) bind(c *fiber.Ctx) error {
	q.Region = c.Query("region")
	q.Source = c.Query("source")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}
	q.From = from
	q.To = to

	return validate.Struct(q)
}

// parseTime tries to parse either a plain day, RFC3339, or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(weather.DateLayout, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use YYYY-MM-DD, RFC3339 or unix seconds")
}
