package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/agroclima/weather-collector/internal/weather"
)

const (
	openWeatherBaseURL = "https://history.openweathermap.org/data/2.5/history/city"

	// The history API caps a single request at roughly one year of data;
	// longer windows are chunked by the orchestrator.
	openWeatherMaxSpanDays = 366
)

// OpenWeatherClient is the primary source client. It queries the OpenWeather
// history API by coordinates and returns daily raw records in standard
// (Kelvin) units.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(client *http.Client, apiKey string, opts ...Option) *OpenWeatherClient {
	o := applyOptions(openWeatherBaseURL, opts)
	return &OpenWeatherClient{
		name:    string(weather.SourceOpenWeather),
		apiKey:  apiKey,
		baseURL: o.baseURL,
		client:  client,
		circuit: newCircuit(string(weather.SourceOpenWeather)),
	}
}

func (c *OpenWeatherClient) Name() string { return c.name }

func (c *OpenWeatherClient) MaxSpanDays() int { return openWeatherMaxSpanDays }

// Fetch issues a single bounded history request for the region and window.
func (c *OpenWeatherClient) Fetch(ctx context.Context, region weather.Region, window weather.Window) ([]weather.RawRecord, error) {
	if c.apiKey == "" {
		return nil, weather.NewFetchError(weather.KindUnconfigured, "openweather api key is not configured")
	}
	if !region.HasCoordinates() {
		return nil, weather.NewFetchError(weather.KindUnconfigured, "region %s has no coordinates", region.ID)
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(region.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(region.Longitude, 'f', -1, 64))
	values.Set("type", "day")
	values.Set("start", strconv.FormatInt(window.Start.UTC().Unix(), 10))
	values.Set("end", strconv.FormatInt(window.End.UTC().AddDate(0, 0, 1).Unix(), 10))
	values.Set("appid", c.apiKey)

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, weather.WrapFetchError(weather.KindUnavailable, err, "building request")
	}

	resp, err := doRequest(ctx, c.client, c.circuit, req)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp     *float64 `json:"temp"`
				TempMin  *float64 `json:"temp_min"`
				TempMax  *float64 `json:"temp_max"`
				Humidity *float64 `json:"humidity"`
			} `json:"main"`
			Rain struct {
				OneH *float64 `json:"1h"`
			} `json:"rain"`
		} `json:"list"`
	}
	if err := decodeJSON(resp, &payload); err != nil {
		return nil, err
	}

	records := make([]weather.RawRecord, 0, len(payload.List))
	for _, entry := range payload.List {
		records = append(records, weather.OpenWeatherRecord{
			RegionID:  region.ID,
			Timestamp: entry.Dt,
			TempMinK:  entry.Main.TempMin,
			TempAvgK:  entry.Main.Temp,
			TempMaxK:  entry.Main.TempMax,
			Humidity:  entry.Main.Humidity,
			RainMM:    entry.Rain.OneH,
		})
	}
	return records, nil
}

var _ weather.SourceClient = (*OpenWeatherClient)(nil)
