package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelvins/geocoder"

	"github.com/agroclima/weather-collector/internal/weather"
)

var validate = validator.New()

// regionsFile mirrors the on-disk region configuration.
type regionsFile struct {
	Regions []weather.Region `json:"regions"`
}

// LoadRegions reads the region set from a JSON file and validates it. When a
// region lacks coordinates and a geocoder API key is configured, coordinates
// are resolved from the region's city/state before validation.
func LoadRegions(path, geocoderAPIKey string) ([]weather.Region, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}

	var rf regionsFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}
	if len(rf.Regions) == 0 {
		return nil, fmt.Errorf("regions file %s defines no regions", path)
	}

	for i := range rf.Regions {
		r := &rf.Regions[i]
		if !r.HasCoordinates() && geocoderAPIKey != "" && r.City != "" {
			if err := resolveCoordinates(r, geocoderAPIKey); err != nil {
				return nil, fmt.Errorf("geocode region %s: %w", r.ID, err)
			}
		}
		// Region IDs become partition file names; whitespace is never valid.
		if strings.ContainsAny(r.ID, " \t\r\n") {
			return nil, fmt.Errorf("invalid region %q: id must not contain whitespace", r.ID)
		}
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("invalid region %q: %w", r.ID, err)
		}
	}
	return rf.Regions, nil
}

func resolveCoordinates(r *weather.Region, apiKey string) error {
	geocoder.ApiKey = apiKey
	location, err := geocoder.Geocoding(geocoder.Address{
		City:    r.City,
		State:   r.State,
		Country: "Brazil",
	})
	if err != nil {
		return err
	}
	r.Latitude = location.Latitude
	r.Longitude = location.Longitude
	return nil
}
