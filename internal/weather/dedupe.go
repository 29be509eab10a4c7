package weather

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RejectReason explains why a candidate observation was not admitted.
type RejectReason string

const (
	ReasonDuplicate  RejectReason = "duplicate"
	ReasonOutOfRange RejectReason = "out_of_range"
)

// RejectionError is returned by Index.Admit for rows that must not be
// persisted. Rejections are counted and reported, never fatal.
type RejectionError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Reason, e.Detail)
}

// Index tracks the (region, source, date) keys already persisted or accepted
// during the current run, preserving the one-observation-per-key invariant
// both within a run and across runs. It is seeded from the partition files at
// run start rather than kept as hidden global state.
type Index struct {
	mu   sync.Mutex
	seen map[ObsKey]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{seen: make(map[ObsKey]struct{})}
}

// Preload seeds the index with keys rebuilt from persisted partitions.
func (i *Index) Preload(keys map[ObsKey]struct{}) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k := range keys {
		i.seen[k] = struct{}{}
	}
}

// Admit validates physical plausibility and uniqueness of a candidate.
// On success the candidate's key is recorded atomically so a second identical
// candidate within the same run is rejected as a duplicate. Out-of-range
// candidates do not claim their key.
func (i *Index) Admit(obs Observation) error {
	if err := validate.Struct(obs); err != nil {
		return &RejectionError{Reason: ReasonOutOfRange, Detail: rangeDetail(obs, err)}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	key := obs.Key()
	if _, exists := i.seen[key]; exists {
		return &RejectionError{
			Reason: ReasonDuplicate,
			Detail: fmt.Sprintf("observation for %s/%s on %s already stored", key.Region, key.Source, key.Date),
		}
	}
	i.seen[key] = struct{}{}
	return nil
}

// Forget releases a key claimed by Admit, used when the subsequent append
// failed and the row was never persisted.
func (i *Index) Forget(key ObsKey) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, key)
}

// Size returns the number of tracked keys.
func (i *Index) Size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.seen)
}

func rangeDetail(obs Observation, err error) string {
	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}
	if len(fields) == 0 {
		return err.Error()
	}
	return fmt.Sprintf("implausible values in %v for %s on %s", fields, obs.RegionID, obs.Date.Format(DateLayout))
}
