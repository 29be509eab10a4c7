package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizationError reports a raw record that cannot be mapped into the
// canonical observation shape. The row is dropped and counted; the run
// continues.
type NormalizationError struct {
	Source Source
	Field  string
	Detail string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s record: field %s: %s", e.Source, e.Field, e.Detail)
}

// OpenWeatherRecord is one daily entry from the OpenWeather history API.
// Temperatures arrive in Kelvin (standard units); pointers distinguish
// missing fields from zero values.
type OpenWeatherRecord struct {
	RegionID  string
	Timestamp int64
	TempMinK  *float64
	TempAvgK  *float64
	TempMaxK  *float64
	Humidity  *float64
	RainMM    *float64
}

func (OpenWeatherRecord) Source() Source { return SourceOpenWeather }

// INMETRecord is one daily entry from the INMET station API, which returns
// every measurement as a string (possibly empty or null).
type INMETRecord struct {
	RegionID    string
	MeasureDate string
	TempMin     string
	TempMax     string
	TempAvg     string
	Humidity    string
	Rain        string
}

func (INMETRecord) Source() Source { return SourceINMET }

const kelvinOffset = 273.15

// Normalize maps a provider-specific record into a canonical Observation.
// Unit conversion happens here, not in the clients.
func Normalize(raw RawRecord, collectedAt time.Time) (Observation, error) {
	switch rec := raw.(type) {
	case OpenWeatherRecord:
		return normalizeOpenWeather(rec, collectedAt)
	case INMETRecord:
		return normalizeINMET(rec, collectedAt)
	default:
		return Observation{}, &NormalizationError{
			Source: raw.Source(),
			Field:  "record",
			Detail: fmt.Sprintf("unsupported raw record type %T", raw),
		}
	}
}

func normalizeOpenWeather(rec OpenWeatherRecord, collectedAt time.Time) (Observation, error) {
	if rec.Timestamp <= 0 {
		return Observation{}, &NormalizationError{Source: SourceOpenWeather, Field: "dt", Detail: "missing or invalid timestamp"}
	}
	required := map[string]*float64{
		"main.temp_min": rec.TempMinK,
		"main.temp":     rec.TempAvgK,
		"main.temp_max": rec.TempMaxK,
		"main.humidity": rec.Humidity,
	}
	for field, v := range required {
		if v == nil {
			return Observation{}, &NormalizationError{Source: SourceOpenWeather, Field: field, Detail: "missing"}
		}
	}

	var rain float64
	if rec.RainMM != nil {
		rain = *rec.RainMM
	}

	return Observation{
		RegionID:      rec.RegionID,
		Source:        SourceOpenWeather,
		Date:          dayOf(time.Unix(rec.Timestamp, 0)),
		TempMin:       *rec.TempMinK - kelvinOffset,
		TempAvg:       *rec.TempAvgK - kelvinOffset,
		TempMax:       *rec.TempMaxK - kelvinOffset,
		Humidity:      *rec.Humidity,
		Precipitation: rain,
		CollectedAt:   collectedAt.UTC(),
	}, nil
}

func normalizeINMET(rec INMETRecord, collectedAt time.Time) (Observation, error) {
	date, err := time.Parse(DateLayout, rec.MeasureDate)
	if err != nil {
		return Observation{}, &NormalizationError{Source: SourceINMET, Field: "DT_MEDICAO", Detail: "missing or invalid date"}
	}

	tempMin, err := parseINMETFloat("TEM_MIN", rec.TempMin)
	if err != nil {
		return Observation{}, err
	}
	tempMax, err := parseINMETFloat("TEM_MAX", rec.TempMax)
	if err != nil {
		return Observation{}, err
	}
	humidity, err := parseINMETFloat("UMID_MED", rec.Humidity)
	if err != nil {
		return Observation{}, err
	}

	// TEM_MED is frequently absent from daily station data; fall back to the
	// midpoint of the extremes.
	tempAvg := (tempMin + tempMax) / 2
	if strings.TrimSpace(rec.TempAvg) != "" {
		if v, perr := parseINMETFloat("TEM_MED", rec.TempAvg); perr == nil {
			tempAvg = v
		}
	}

	// Null rainfall means no measurement, recorded as zero accumulation.
	var rain float64
	if strings.TrimSpace(rec.Rain) != "" {
		if v, perr := parseINMETFloat("CHUVA", rec.Rain); perr == nil {
			rain = v
		}
	}

	return Observation{
		RegionID:      rec.RegionID,
		Source:        SourceINMET,
		Date:          dayOf(date),
		TempMin:       tempMin,
		TempAvg:       tempAvg,
		TempMax:       tempMax,
		Humidity:      humidity,
		Precipitation: rain,
		CollectedAt:   collectedAt.UTC(),
	}, nil
}

// parseINMETFloat parses INMET's stringly-typed numbers, accepting a decimal
// comma as emitted by some stations.
func parseINMETFloat(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &NormalizationError{Source: SourceINMET, Field: field, Detail: "missing"}
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, &NormalizationError{Source: SourceINMET, Field: field, Detail: "not a number: " + s}
	}
	return v, nil
}
