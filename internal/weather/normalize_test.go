package weather

import (
	"errors"
	"math"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func TestNormalizeOpenWeatherConvertsKelvin(t *testing.T) {
	collected := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	rec := OpenWeatherRecord{
		RegionID:  "Brasilia_DF",
		Timestamp: time.Date(2025, 4, 2, 14, 30, 0, 0, time.UTC).Unix(),
		TempMinK:  f(291.65),
		TempAvgK:  f(297.15),
		TempMaxK:  f(304.35),
		Humidity:  f(55),
		RainMM:    f(2.4),
	}

	obs, err := Normalize(rec, collected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Source != SourceOpenWeather {
		t.Fatalf("expected source %q, got %q", SourceOpenWeather, obs.Source)
	}
	if !obs.Date.Equal(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected day-truncated date, got %v", obs.Date)
	}
	if math.Abs(obs.TempAvg-24.0) > 1e-9 {
		t.Fatalf("expected 24.0C, got %v", obs.TempAvg)
	}
	if math.Abs(obs.TempMin-18.5) > 1e-9 || math.Abs(obs.TempMax-31.2) > 1e-9 {
		t.Fatalf("unexpected extremes: min=%v max=%v", obs.TempMin, obs.TempMax)
	}
	if obs.Precipitation != 2.4 {
		t.Fatalf("expected precipitation 2.4, got %v", obs.Precipitation)
	}
}

func TestNormalizeOpenWeatherMissingField(t *testing.T) {
	rec := OpenWeatherRecord{
		RegionID:  "Brasilia_DF",
		Timestamp: time.Now().Unix(),
		TempMinK:  f(290),
		TempAvgK:  f(295),
		TempMaxK:  f(300),
		// Humidity missing
	}

	_, err := Normalize(rec, time.Now())
	var nerr *NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizationError, got %T: %v", err, err)
	}
	if nerr.Field != "main.humidity" {
		t.Fatalf("expected humidity failure, got field %q", nerr.Field)
	}
}

func TestNormalizeOpenWeatherMissingRainDefaultsToZero(t *testing.T) {
	rec := OpenWeatherRecord{
		RegionID:  "Brasilia_DF",
		Timestamp: time.Now().Unix(),
		TempMinK:  f(290),
		TempAvgK:  f(295),
		TempMaxK:  f(300),
		Humidity:  f(60),
	}

	obs, err := Normalize(rec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Precipitation != 0 {
		t.Fatalf("expected zero precipitation, got %v", obs.Precipitation)
	}
}

func TestNormalizeINMET(t *testing.T) {
	rec := INMETRecord{
		RegionID:    "Ribeirao_Preto_SP",
		MeasureDate: "2025-04-02",
		TempMin:     "17,8",
		TempMax:     "30,2",
		Humidity:    "61.5",
		Rain:        "",
	}

	obs, err := Normalize(rec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Source != SourceINMET {
		t.Fatalf("expected source %q, got %q", SourceINMET, obs.Source)
	}
	if math.Abs(obs.TempMin-17.8) > 1e-9 {
		t.Fatalf("decimal comma not handled: %v", obs.TempMin)
	}
	if math.Abs(obs.TempAvg-24.0) > 1e-9 {
		t.Fatalf("expected midpoint fallback 24.0, got %v", obs.TempAvg)
	}
	if obs.Precipitation != 0 {
		t.Fatalf("null rainfall must normalize to zero, got %v", obs.Precipitation)
	}
}

func TestNormalizeINMETExplicitMean(t *testing.T) {
	rec := INMETRecord{
		RegionID:    "Ribeirao_Preto_SP",
		MeasureDate: "2025-04-02",
		TempMin:     "17.8",
		TempMax:     "30.2",
		TempAvg:     "23.1",
		Humidity:    "61.5",
		Rain:        "4.2",
	}

	obs, err := Normalize(rec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.TempAvg != 23.1 {
		t.Fatalf("expected reported mean 23.1, got %v", obs.TempAvg)
	}
	if obs.Precipitation != 4.2 {
		t.Fatalf("expected rainfall 4.2, got %v", obs.Precipitation)
	}
}

func TestNormalizeINMETMissingRequired(t *testing.T) {
	cases := []struct {
		name  string
		rec   INMETRecord
		field string
	}{
		{
			name:  "missing date",
			rec:   INMETRecord{RegionID: "X", TempMin: "10", TempMax: "20", Humidity: "50"},
			field: "DT_MEDICAO",
		},
		{
			name:  "missing minimum temperature",
			rec:   INMETRecord{RegionID: "X", MeasureDate: "2025-04-02", TempMax: "20", Humidity: "50"},
			field: "TEM_MIN",
		},
		{
			name:  "garbage humidity",
			rec:   INMETRecord{RegionID: "X", MeasureDate: "2025-04-02", TempMin: "10", TempMax: "20", Humidity: "n/d"},
			field: "UMID_MED",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.rec, time.Now())
			var nerr *NormalizationError
			if !errors.As(err, &nerr) {
				t.Fatalf("expected NormalizationError, got %T: %v", err, err)
			}
			if nerr.Field != tc.field {
				t.Fatalf("expected failure on %q, got %q", tc.field, nerr.Field)
			}
		})
	}
}
