// Package weather fetches township forecasts from the CWA open-data API.
// Forecasts only ever decorate replies; every failure here is swallowed by
// the caller and the decorated section is simply omitted.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// weekly township forecast dataset (Pingtung County)
const weeklyDataset = "F-D0047-035"

// Forecast is one day's summary for the configured township.
type Forecast struct {
	Date    string
	Weather string
	MinTemp string
	MaxTemp string
	RainPct string
}

// Client is the forecast surface the flows use. Production uses CWA; tests
// use Mock.
type Client interface {
	Forecast(ctx context.Context, date string) (*Forecast, error)
	Weekly(ctx context.Context) ([]Forecast, error)
}

// CWAOpts configures the open-data client.
type CWAOpts struct {
	BaseURL  string
	APIKey   string
	Location string // township name, e.g. 車城鄉
	Timeout  time.Duration
}

// CWA is the production forecast client.
type CWA struct {
	baseURL  string
	apiKey   string
	location string
	http     *http.Client
}

// NewCWA validates opts and returns a CWA client.
func NewCWA(opts CWAOpts) (*CWA, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("weather: API key is required")
	}
	if opts.Location == "" {
		return nil, fmt.Errorf("weather: location is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://opendata.cwa.gov.tw/api/v1/rest/datastore"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &CWA{
		baseURL:  strings.TrimRight(base, "/"),
		apiKey:   opts.APIKey,
		location: opts.Location,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type cwaResponse struct {
	Success string `json:"success"`
	Records struct {
		Locations []struct {
			Location []struct {
				LocationName   string `json:"LocationName"`
				WeatherElement []struct {
					ElementName string `json:"ElementName"`
					Time        []struct {
						StartTime    string              `json:"StartTime"`
						ElementValue []map[string]string `json:"ElementValue"`
					} `json:"Time"`
				} `json:"WeatherElement"`
			} `json:"Location"`
		} `json:"Locations"`
	} `json:"records"`
}

func (c *CWA) fetch(ctx context.Context) (*cwaResponse, error) {
	q := url.Values{
		"Authorization": {c.apiKey},
		"format":        {"JSON"},
		"locationName":  {c.location},
		"elementName":   {"天氣現象,最低溫度,最高溫度,12小時降雨機率"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+weeklyDataset+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("weather: fetch: status %d", resp.StatusCode)
	}
	var out cwaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	if out.Success != "true" {
		return nil, fmt.Errorf("weather: API reported failure")
	}
	return &out, nil
}

// forecastsByDate flattens the CWA element grid into one Forecast per day.
func (c *CWA) forecastsByDate(resp *cwaResponse) map[string]*Forecast {
	byDate := map[string]*Forecast{}
	for _, locs := range resp.Records.Locations {
		for _, loc := range locs.Location {
			if loc.LocationName != c.location {
				continue
			}
			for _, elem := range loc.WeatherElement {
				for _, slot := range elem.Time {
					if len(slot.StartTime) < 10 {
						continue
					}
					date := slot.StartTime[:10]
					f := byDate[date]
					if f == nil {
						f = &Forecast{Date: date}
						byDate[date] = f
					}
					if len(slot.ElementValue) == 0 {
						continue
					}
					v := slot.ElementValue[0]
					switch elem.ElementName {
					case "天氣現象":
						if f.Weather == "" {
							f.Weather = v["Weather"]
						}
					case "最低溫度":
						if f.MinTemp == "" {
							f.MinTemp = v["MinTemperature"]
						}
					case "最高溫度":
						if f.MaxTemp == "" {
							f.MaxTemp = v["MaxTemperature"]
						}
					case "12小時降雨機率":
						if f.RainPct == "" {
							f.RainPct = v["ProbabilityOfPrecipitation"]
						}
					}
				}
			}
		}
	}
	return byDate
}

// Forecast returns the forecast for one date (YYYY-MM-DD) within the coming
// week, or an error when the date is out of range or the API misbehaves.
func (c *CWA) Forecast(ctx context.Context, date string) (*Forecast, error) {
	target, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("weather: parse date %q: %w", date, err)
	}
	days := int(time.Until(target).Hours() / 24)
	if days < -1 || days > 6 {
		return nil, fmt.Errorf("weather: date %s outside forecast window", date)
	}
	resp, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	f, ok := c.forecastsByDate(resp)[date]
	if !ok {
		return nil, fmt.Errorf("weather: no forecast for %s", date)
	}
	return f, nil
}

// Weekly returns the full 7-day forecast, soonest first.
func (c *CWA) Weekly(ctx context.Context) ([]Forecast, error) {
	resp, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	byDate := c.forecastsByDate(resp)
	var dates []string
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]Forecast, 0, len(dates))
	for _, d := range dates {
		out = append(out, *byDate[d])
	}
	return out, nil
}

// Line renders a one-line guest-facing summary.
func (f *Forecast) Line() string {
	parts := []string{f.Date, f.Weather}
	if f.MinTemp != "" && f.MaxTemp != "" {
		parts = append(parts, fmt.Sprintf("%s°C - %s°C", f.MinTemp, f.MaxTemp))
	}
	if f.RainPct != "" && f.RainPct != " " {
		parts = append(parts, "降雨機率 "+f.RainPct+"%")
	}
	return strings.Join(parts, " ")
}

// Mock is a canned-forecast Client for tests.
type Mock struct {
	ByDate map[string]*Forecast
	Err    error
}

// Forecast returns the canned forecast for the date.
func (m *Mock) Forecast(ctx context.Context, date string) (*Forecast, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	f, ok := m.ByDate[date]
	if !ok {
		return nil, fmt.Errorf("weather: no forecast for %s", date)
	}
	return f, nil
}

// Weekly returns all canned forecasts.
func (m *Mock) Weekly(ctx context.Context) ([]Forecast, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []Forecast
	for _, f := range m.ByDate {
		out = append(out, *f)
	}
	return out, nil
}
