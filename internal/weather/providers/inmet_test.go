package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agroclima/weather-collector/internal/weather"
)

func TestINMETFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := "/estacao/diaria/2025-04-01/2025-04-07/A001"; r.URL.Path != want {
			t.Errorf("expected path %q, got %q", want, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"DT_MEDICAO":"2025-04-01","TEM_MIN":"17,8","TEM_MAX":"30,2","TEM_MED":"","UMID_MED":"61","CHUVA":""},
			{"DT_MEDICAO":"2025-04-02","TEM_MIN":"18.0","TEM_MAX":"29.5","TEM_MED":"23.1","UMID_MED":"58","CHUVA":"4.2"}
		]`))
	}))
	defer srv.Close()

	client := NewINMETClient(srv.Client(), "test-token", WithBaseURL(srv.URL))
	records, err := client.Fetch(context.Background(), testRegion(), testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	rec, ok := records[0].(weather.INMETRecord)
	if !ok {
		t.Fatalf("expected INMETRecord, got %T", records[0])
	}
	if rec.RegionID != "Brasilia_DF" {
		t.Fatalf("expected region id on record, got %q", rec.RegionID)
	}
	if rec.TempMin != "17,8" {
		t.Fatalf("raw values must pass through untouched, got %q", rec.TempMin)
	}
}

func TestINMETNoTokenOmitsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expected no auth header, got %q", got)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewINMETClient(srv.Client(), "", WithBaseURL(srv.URL))
	records, err := client.Fetch(context.Background(), testRegion(), testWindow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d records", len(records))
	}
}

func TestINMETMissingStationIsUnconfigured(t *testing.T) {
	client := NewINMETClient(http.DefaultClient, "test-token")

	region := weather.Region{ID: "Sorriso_MT", Latitude: -12.54, Longitude: -55.72}
	_, err := client.Fetch(context.Background(), region, testWindow())
	if got := fetchKind(t, err); got != weather.KindUnconfigured {
		t.Fatalf("expected kind %q, got %q", weather.KindUnconfigured, got)
	}
}

func TestINMETStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   weather.ErrorKind
	}{
		{http.StatusTooManyRequests, weather.KindRateLimited},
		{http.StatusForbidden, weather.KindAuthInvalid},
		{http.StatusNotFound, weather.KindNotFound},
		{http.StatusServiceUnavailable, weather.KindUnavailable},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewINMETClient(srv.Client(), "test-token", WithBaseURL(srv.URL))

		_, err := client.Fetch(context.Background(), testRegion(), testWindow())
		if got := fetchKind(t, err); got != tc.kind {
			t.Errorf("status %d: expected kind %q, got %q", tc.status, tc.kind, got)
		}
		srv.Close()
	}
}

func TestINMETMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":"object"}`))
	}))
	defer srv.Close()

	client := NewINMETClient(srv.Client(), "test-token", WithBaseURL(srv.URL))
	_, err := client.Fetch(context.Background(), testRegion(), testWindow())
	if got := fetchKind(t, err); got != weather.KindMalformed {
		t.Fatalf("expected kind %q, got %q", weather.KindMalformed, got)
	}
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewINMETClient(srv.Client(), "test-token", WithBaseURL(srv.URL))
	var last error
	for i := 0; i < 10; i++ {
		_, last = client.Fetch(context.Background(), testRegion(), testWindow())
	}

	if got := fetchKind(t, last); got != weather.KindUnavailable {
		t.Fatalf("expected kind %q, got %q", weather.KindUnavailable, got)
	}
	if !strings.Contains(last.Error(), "circuit") {
		t.Fatalf("expected circuit breaker rejection, got %v", last)
	}
	if hits >= 10 {
		t.Fatalf("open circuit must stop reaching the server, saw %d hits", hits)
	}
}
