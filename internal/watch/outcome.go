// Package watch implements the background polling core: a repeating
// fetch-and-parse loop that hands each result to a single consumer through a
// one-slot mailbox, exactly once. Results are never cached; an update the
// consumer fails to drain before the next tick is gone for good.
package watch

import (
	"fmt"

	"github.com/kjstillabower/weather-watch-service/internal/models"
)

// Loading is the message carried by the outcome published when a poller
// starts, before its first attempt completes. Consumers can match on it to
// distinguish "not ready yet" from a real failure.
const Loading = "loading..."

// ErrorKind classifies a failed poll attempt.
type ErrorKind int

const (
	// KindAwaitingFirstResult marks the informational pre-first-tick outcome.
	KindAwaitingFirstResult ErrorKind = iota
	// KindTransport is a network-level failure (connection, timeout).
	KindTransport
	// KindRemoteStatus is a non-2xx upstream response; the code is preserved.
	KindRemoteStatus
	// KindParseFailure is a malformed response body from a 2xx response.
	KindParseFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindAwaitingFirstResult:
		return "awaiting_first_result"
	case KindTransport:
		return "transport"
	case KindRemoteStatus:
		return "remote_status"
	case KindParseFailure:
		return "parse_failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ErrorDetail describes one failed poll attempt. StatusCode is set only for
// KindRemoteStatus.
type ErrorDetail struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ErrorDetail) Error() string {
	return e.Message
}

// Outcome is the result of one poll tick: a weather report or an ErrorDetail,
// never both. It is immutable once produced; ownership passes from the poll
// loop through the mailbox to the consumer. Seq is assigned in publish order
// and is distinct for every outcome a poller emits, so two takes can be shown
// to never return the same outcome.
type Outcome struct {
	Seq    uint64
	Report *models.CurrentWeather
	Err    *ErrorDetail
}

// OK reports whether the tick succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

func failure(kind ErrorKind, statusCode int, message string) Outcome {
	return Outcome{Err: &ErrorDetail{Kind: kind, StatusCode: statusCode, Message: message}}
}
