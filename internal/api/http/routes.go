package httpapi

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/solar-data-pipeline/internal/dataset"
	"github.com/i474232898/solar-data-pipeline/internal/publish"
	"github.com/i474232898/solar-data-pipeline/internal/solar"
	"github.com/i474232898/solar-data-pipeline/internal/store"
)

var validate = validator.New()

// StatusSource reports publisher progress.
type StatusSource interface {
	Status() publish.Status
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, data *store.DatasetStore, status StatusSource) {
	v1 := app.Group("/api/v1")

	v1.Get("/solar", func(c *fiber.Ctx) error {
		records := data.All()
		return c.JSON(fiber.Map{
			"count":   len(records),
			"records": records,
		})
	})

	v1.Get("/solar/location", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := data.GetByLocation(q.Name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no solar data for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to look up solar data")
		}

		resp := fiber.Map{
			"location": q.Name,
			"record":   rec,
		}
		if mean, ok := solar.AnnualMean(months(rec)); ok {
			resp["annualMean"] = mean
		}
		return c.JSON(resp)
	})

	v1.Get("/solar/status", func(c *fiber.Ctx) error {
		if status == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "publisher not running")
		}
		return c.JSON(status.Status())
	})
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	Name string `validate:"required"`
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Name = strings.TrimSpace(c.Query("name"))

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

func months(rec dataset.Record) solar.Months {
	m := make(solar.Months)
	for _, f := range rec {
		if !solar.IsMonthKey(f.Key) {
			continue
		}
		if v, ok := rec.Get(f.Key); ok {
			m[f.Key] = v
		}
	}
	return m
}
