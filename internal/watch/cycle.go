package watch

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-watch-service/internal/client"
	"github.com/kjstillabower/weather-watch-service/internal/models"
)

// Fetcher is the transport boundary of one poll attempt: a single request for
// the raw current-weather payload of a fixed, pre-bound target.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// Cycle runs one fetch-and-parse attempt per call and folds every failure
// into an Outcome value. It is stateless across calls; errors never escape as
// errors, only as Failure outcomes.
type Cycle struct {
	fetcher Fetcher
}

func NewCycle(fetcher Fetcher) *Cycle {
	return &Cycle{fetcher: fetcher}
}

// Attempt performs one tick. The returned outcome has Seq zero; the poller
// assigns sequence numbers at publish time.
func (c *Cycle) Attempt(ctx context.Context) Outcome {
	raw, err := c.fetcher.Fetch(ctx)
	if err != nil {
		var se *client.StatusError
		if errors.As(err, &se) {
			return failure(KindRemoteStatus, se.Code, err.Error())
		}
		return failure(KindTransport, 0, err.Error())
	}

	report, err := models.ParseCurrent(raw)
	if err != nil {
		return failure(KindParseFailure, 0, err.Error())
	}
	return Outcome{Report: report}
}
