package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/agroclima/weather-collector/internal/weather"
)

const (
	inmetBaseURL = "https://apitempo.inmet.gov.br"

	inmetMaxSpanDays = 366
)

// INMETClient is the backup source client. It queries the INMET daily
// station endpoint by station code; regions without a station code fail
// immediately as unconfigured and are not retried.
type INMETClient struct {
	name    string
	token   string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewINMETClient(client *http.Client, token string, opts ...Option) *INMETClient {
	o := applyOptions(inmetBaseURL, opts)
	return &INMETClient{
		name:    string(weather.SourceINMET),
		token:   token,
		baseURL: o.baseURL,
		client:  client,
		circuit: newCircuit(string(weather.SourceINMET)),
	}
}

func (c *INMETClient) Name() string { return c.name }

func (c *INMETClient) MaxSpanDays() int { return inmetMaxSpanDays }

// Fetch issues a single daily-data request for the region's station.
func (c *INMETClient) Fetch(ctx context.Context, region weather.Region, window weather.Window) ([]weather.RawRecord, error) {
	if region.StationCode == "" {
		return nil, weather.NewFetchError(weather.KindUnconfigured, "region %s has no backup station code", region.ID)
	}

	u := fmt.Sprintf("%s/estacao/diaria/%s/%s/%s",
		c.baseURL,
		window.Start.UTC().Format(weather.DateLayout),
		window.End.UTC().Format(weather.DateLayout),
		region.StationCode,
	)
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, weather.WrapFetchError(weather.KindUnavailable, err, "building request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, req)
	if err != nil {
		return nil, err
	}

	var payload []struct {
		MeasureDate string `json:"DT_MEDICAO"`
		TempMin     string `json:"TEM_MIN"`
		TempMax     string `json:"TEM_MAX"`
		TempAvg     string `json:"TEM_MED"`
		Humidity    string `json:"UMID_MED"`
		Rain        string `json:"CHUVA"`
	}
	if err := decodeJSON(resp, &payload); err != nil {
		return nil, err
	}

	records := make([]weather.RawRecord, 0, len(payload))
	for _, entry := range payload {
		records = append(records, weather.INMETRecord{
			RegionID:    region.ID,
			MeasureDate: entry.MeasureDate,
			TempMin:     entry.TempMin,
			TempMax:     entry.TempMax,
			TempAvg:     entry.TempAvg,
			Humidity:    entry.Humidity,
			Rain:        entry.Rain,
		})
	}
	return records, nil
}

var _ weather.SourceClient = (*INMETClient)(nil)
