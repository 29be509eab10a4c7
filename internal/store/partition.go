// Package store persists observations on a region/year/month partitioned
// CSV layout. Files are append-only logs of accepted rows; the store is the
// only component that mutates them.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/agroclima/weather-collector/internal/weather"
)

// header is the stable column order of every partition file.
var header = []string{
	"region", "source", "date",
	"temp_min", "temp_avg", "temp_max",
	"humidity", "precipitation", "collected_at",
}

// PartitionStore writes observations under
// <baseDir>/<source>/<year>/<month>/<region>.csv.
type PartitionStore struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-partition serialization
}

// New creates a PartitionStore rooted at baseDir. Directories are created
// lazily on first write.
func New(baseDir string) *PartitionStore {
	return &PartitionStore{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Path returns the partition file an observation belongs to. The mapping is
// deterministic in (source, region, year, month).
func (s *PartitionStore) Path(source weather.Source, regionID string, date time.Time) string {
	date = date.UTC()
	return filepath.Join(
		s.baseDir,
		string(source),
		strconv.Itoa(date.Year()),
		fmt.Sprintf("%02d", int(date.Month())),
		regionID+".csv",
	)
}

func (s *PartitionStore) lockFor(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// Append adds one observation to its partition, creating the directory tree
// and the file (with header) on first use. Existing rows are never rewritten.
func (s *PartitionStore) Append(obs weather.Observation) error {
	path := s.Path(obs.Source, obs.RegionID, obs.Date)

	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create partition directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat partition %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write partition header: %w", err)
		}
	}
	if err := w.Write(row(obs)); err != nil {
		return fmt.Errorf("append to partition %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush partition %s: %w", path, err)
	}
	return nil
}

// Keys rebuilds the set of persisted observation keys for the given regions
// and sources within the window. Missing partitions are not an error.
func (s *PartitionStore) Keys(regionIDs []string, sources []weather.Source, window weather.Window) (map[weather.ObsKey]struct{}, error) {
	keys := make(map[weather.ObsKey]struct{})
	for _, month := range monthsBetween(window.Start, window.End) {
		for _, source := range sources {
			for _, regionID := range regionIDs {
				path := s.Path(source, regionID, month)
				if err := s.scanPartition(path, func(obs weather.Observation) {
					keys[obs.Key()] = struct{}{}
				}); err != nil {
					return nil, err
				}
			}
		}
	}
	return keys, nil
}

// ReadRange returns persisted observations for one region and source between
// from and to inclusive, in file order. Bounds are day-granularity; intra-day
// times are truncated. Used by read-only consumers.
func (s *PartitionStore) ReadRange(regionID string, source weather.Source, from, to time.Time) ([]weather.Observation, error) {
	fromDay, toDay := dayStart(from), dayStart(to)
	var out []weather.Observation
	for _, month := range monthsBetween(fromDay, toDay) {
		path := s.Path(source, regionID, month)
		if err := s.scanPartition(path, func(obs weather.Observation) {
			if obs.Date.Before(fromDay) || obs.Date.After(toDay) {
				return
			}
			out = append(out, obs)
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// dayStart truncates t to midnight UTC.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *PartitionStore) scanPartition(path string, visit func(weather.Observation)) error {
	l := s.lockFor(path)
	l.Lock()
	defer l.Unlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open partition %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read partition %s: %w", path, err)
	}
	for i, record := range rows {
		if i == 0 {
			continue // header
		}
		obs, perr := parseRow(record)
		if perr != nil {
			return fmt.Errorf("partition %s row %d: %w", path, i+1, perr)
		}
		visit(obs)
	}
	return nil
}

func row(obs weather.Observation) []string {
	return []string{
		obs.RegionID,
		string(obs.Source),
		obs.Date.UTC().Format(weather.DateLayout),
		formatFloat(obs.TempMin),
		formatFloat(obs.TempAvg),
		formatFloat(obs.TempMax),
		formatFloat(obs.Humidity),
		formatFloat(obs.Precipitation),
		obs.CollectedAt.UTC().Format(time.RFC3339),
	}
}

func parseRow(record []string) (weather.Observation, error) {
	if len(record) != len(header) {
		return weather.Observation{}, fmt.Errorf("expected %d columns, got %d", len(header), len(record))
	}
	date, err := time.Parse(weather.DateLayout, record[2])
	if err != nil {
		return weather.Observation{}, fmt.Errorf("invalid date %q: %w", record[2], err)
	}
	collected, err := time.Parse(time.RFC3339, record[8])
	if err != nil {
		return weather.Observation{}, fmt.Errorf("invalid collected_at %q: %w", record[8], err)
	}
	floats := make([]float64, 5)
	for i, raw := range record[3:8] {
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return weather.Observation{}, fmt.Errorf("invalid %s %q: %w", header[3+i], raw, perr)
		}
		floats[i] = v
	}
	return weather.Observation{
		RegionID:      record[0],
		Source:        weather.Source(record[1]),
		Date:          date,
		TempMin:       floats[0],
		TempAvg:       floats[1],
		TempMax:       floats[2],
		Humidity:      floats[3],
		Precipitation: floats[4],
		CollectedAt:   collected,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// monthsBetween lists the first day of every month touched by [start, end].
func monthsBetween(start, end time.Time) []time.Time {
	start, end = start.UTC(), end.UTC()
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

var _ weather.Store = (*PartitionStore)(nil)
