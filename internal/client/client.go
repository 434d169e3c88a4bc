package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-watch-service/internal/models"
	"github.com/kjstillabower/weather-watch-service/internal/observability"
)

// DefaultAPIURL is the OpenWeatherMap current-weather endpoint.
const DefaultAPIURL = "https://api.openweathermap.org/data/2.5/weather"

var ErrInvalidAPIKey = errors.New("invalid API key")

// StatusError reports a non-2xx upstream response. The numeric code is
// preserved verbatim so callers can inspect it (401 for a bad credential,
// 404 for an unknown location, and so on).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote status %d %s", e.Code, http.StatusText(e.Code))
}

// Query identifies one current-weather target. Location may be a city name
// ("London"), a numeric city ID ("2643743") or a "lat,lon" coordinate pair
// ("51.51,-0.13"); the query parameter is chosen accordingly. The location is
// passed through to the upstream unvalidated.
type Query struct {
	Location string
	Units    models.Units
	Language string
}

var coordPattern = regexp.MustCompile(`(-?\d+\.\d+)\s*,\s*(-?\d+\.\d+)`)

// OpenWeatherClient performs single current-weather fetches. It does exactly
// one outbound call per FetchCurrent invocation; retry policy belongs to the
// poll loop, not here.
type OpenWeatherClient struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	return &OpenWeatherClient{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// FetchCurrent issues one GET for the query and returns the raw response
// body. Transport failures come back wrapped; a non-2xx status comes back as
// a *StatusError. The body is never interpreted here.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, q Query) ([]byte, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, q)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, q Query) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	if _, err := strconv.ParseUint(q.Location, 10, 64); err == nil {
		params.Set("id", q.Location)
	} else if caps := coordPattern.FindStringSubmatch(q.Location); caps != nil {
		params.Set("lat", caps[1])
		params.Set("lon", caps[2])
	} else {
		params.Set("q", q.Location)
	}
	if q.Units != "" {
		params.Set("units", string(q.Units))
	}
	if q.Language != "" {
		params.Set("lang", q.Language)
	}
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// ValidateAPIKey performs a throwaway fetch to verify the credential is
// accepted by the upstream.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.FetchCurrent(ctx, Query{Location: "London", Units: models.UnitsMetric})
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
