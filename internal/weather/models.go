package weather

import (
	"strings"
	"time"
)

// Source identifies the provider an observation came from. The primary
// provider is OpenWeather; INMET stations serve as failover only.
type Source string

const (
	SourceOpenWeather Source = "openweather"
	SourceINMET       Source = "inmet"
)

// Region is an agricultural region tracked by the collector. Regions are
// loaded from configuration and are immutable for the duration of a run.
type Region struct {
	ID          string  `json:"id" validate:"required"`
	Description string  `json:"description"`
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`

	// StationCode is the INMET station used by the backup provider.
	// Optional; regions without one cannot fail over.
	StationCode string `json:"station_code,omitempty"`
}

// HasCoordinates reports whether the region carries usable coordinates.
func (r Region) HasCoordinates() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// DateLayout is the canonical day format used in keys and partition rows.
const DateLayout = "2006-01-02"

// Observation is the canonical daily record persisted per region and source.
// Temperatures are Celsius, humidity percent, precipitation millimetres.
type Observation struct {
	RegionID      string    `json:"region"`
	Source        Source    `json:"source"`
	Date          time.Time `json:"date"` // midnight UTC, day granularity
	TempMin       float64   `json:"temp_min" validate:"gte=-90,lte=60"`
	TempAvg       float64   `json:"temp_avg" validate:"gte=-90,lte=60"`
	TempMax       float64   `json:"temp_max" validate:"gte=-90,lte=60"`
	Humidity      float64   `json:"humidity" validate:"gte=0,lte=100"`
	Precipitation float64   `json:"precipitation" validate:"gte=0"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Key returns the uniqueness key for this observation. At most one stored
// observation may exist per key.
func (o Observation) Key() ObsKey {
	return ObsKey{
		Region: o.RegionID,
		Source: o.Source,
		Date:   o.Date.UTC().Format(DateLayout),
	}
}

// ObsKey identifies an observation by (region, source, day).
type ObsKey struct {
	Region string
	Source Source
	Date   string
}

// Status is the terminal state of a region's collection for one window.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Outcome summarizes a region's collection for one window. It is produced
// fresh per run and never persisted beyond the run's report.
type Outcome struct {
	Status            Status `json:"status"`
	Source            Source `json:"source,omitempty"` // source that contributed rows, or last attempted
	Accepted          int    `json:"accepted"`
	RejectedDuplicate int    `json:"rejected_duplicate"`
	RejectedInvalid   int    `json:"rejected_invalid"`
	Error             string `json:"error,omitempty"`
}

// Report aggregates the outcomes of one orchestrator run.
type Report struct {
	RunID      string             `json:"run_id"`
	Window     Window             `json:"window"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Outcomes   map[string]Outcome `json:"outcomes"`
}

// ParseSource validates a source name coming from external input.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(s)) {
	case SourceOpenWeather:
		return SourceOpenWeather, true
	case SourceINMET:
		return SourceINMET, true
	}
	return "", false
}

// Sources lists all known sources in partition order.
func Sources() []Source {
	return []Source{SourceOpenWeather, SourceINMET}
}
