// Package service wires the fetch client into background pollers and exposes
// the one-shot entry points. It deliberately keeps no "last known result"
// state: every report a caller sees came out of a mailbox exactly once.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-watch-service/internal/client"
	"github.com/kjstillabower/weather-watch-service/internal/models"
	"github.com/kjstillabower/weather-watch-service/internal/watch"
)

// WeatherService creates pollers bound to one upstream client.
type WeatherService struct {
	client       *client.OpenWeatherClient
	retrySpacing time.Duration
	logger       *zap.Logger
}

// NewWeatherService returns a service using the given client. retrySpacing
// separates one-shot retry attempts; zero selects watch.DefaultRetrySpacing.
func NewWeatherService(c *client.OpenWeatherClient, retrySpacing time.Duration, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		client:       c,
		retrySpacing: retrySpacing,
		logger:       logger,
	}
}

// Watch starts a background poller for the query. The query is copied into
// the poller at start and never mutated afterward. interval zero selects
// one-shot mode. The caller owns the returned poller and must Stop it (or
// cancel ctx) unless it self-terminates.
func (s *WeatherService) Watch(ctx context.Context, q client.Query, interval time.Duration) *watch.Poller {
	cycle := watch.NewCycle(watch.FetcherFunc(func(ctx context.Context) ([]byte, error) {
		return s.client.FetchCurrent(ctx, q)
	}))
	p := watch.New(cycle, watch.Config{
		Interval:     interval,
		RetrySpacing: s.retrySpacing,
		Logger:       s.logger,
	})
	p.Start(ctx)
	return p
}

// CurrentWeather fetches one report, suspending cooperatively until the
// one-shot poller produces its first success. Failed attempts (including the
// not-ready sentinel) are retried internally; the only way out without a
// report is the caller abandoning the wait through ctx.
func (s *WeatherService) CurrentWeather(ctx context.Context, q client.Query) (*models.CurrentWeather, error) {
	p := s.Watch(ctx, q, 0)
	defer p.Stop()

	for {
		out, err := p.WaitTake(ctx)
		if err != nil {
			return nil, err
		}
		if out.OK() {
			return out.Report, nil
		}
	}
}

// CurrentWeatherBlocking is CurrentWeather for callers without a context: it
// blocks the calling goroutine until the first successful report.
func (s *WeatherService) CurrentWeatherBlocking(q client.Query) (*models.CurrentWeather, error) {
	return s.CurrentWeather(context.Background(), q)
}
