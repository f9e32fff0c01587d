package iap

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-iap-wallet/internal/domain"
)

// Transport-level failures. None of them says anything about the receipt, so
// callers must not persist them as a validation outcome.
var (
	// ErrTransport covers network failures and unexpected HTTP statuses.
	ErrTransport = errors.New("storefront unavailable")

	// ErrTimeout is returned when the storefront did not answer in time. The
	// purchase may still have been accepted remotely.
	ErrTimeout = errors.New("storefront timeout")

	// ErrMalformedResponse is returned when the body cannot be parsed.
	ErrMalformedResponse = errors.New("malformed storefront response")
)

// VerifyError annotates a failure with the storefront and step that failed.
type VerifyError struct {
	Service domain.Service
	Op      string
	Err     error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("iap %s %s: %v", e.Service, e.Op, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Outcome is the normalized storefront answer.
type Outcome struct {
	// Validated is true only when the storefront accepted the receipt.
	Validated bool
	// Status is the storefront's own code (Apple status, Google purchase state).
	Status int
	// Message is a human-readable reading of Status, empty on success.
	Message string
	// RawResponse is the response body as received.
	RawResponse string
}

// Verifier checks one receipt with a storefront. A nil error means the
// storefront answered; Outcome.Validated tells whether it accepted.
type Verifier interface {
	Verify(ctx context.Context, r Receipt) (*Outcome, error)
}

var verifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "iap_verifications_total",
		Help: "Storefront receipt verifications by service and outcome.",
	},
	[]string{"service", "outcome"}, // outcome: validated, rejected, timeout, transport_error, malformed
)

func init() {
	prometheus.MustRegister(verifications)
}

func observe(service domain.Service, out *Outcome, err error) {
	var outcome string
	switch {
	case err == nil && out.Validated:
		outcome = "validated"
	case err == nil:
		outcome = "rejected"
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrMalformedResponse):
		outcome = "malformed"
	default:
		outcome = "transport_error"
	}
	verifications.WithLabelValues(string(service), outcome).Inc()
}

// transportError classifies a failed round trip. Deadline expiry, whether from
// the verifier's own bound or the caller's context, is reported as ErrTimeout.
func transportError(service domain.Service, op string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &VerifyError{Service: service, Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	return &VerifyError{Service: service, Op: op, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
}
