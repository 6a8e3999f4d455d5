package webhook

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattjoyce/scrapehook/internal/signature"
)

// DefaultMaxAge is the replay window applied when VerifyOptions.MaxAge is unset.
const DefaultMaxAge = 5 * time.Minute

// ErrMissingParameter is matched by every *MissingParameterError.
var ErrMissingParameter = errors.New("webhook: missing required parameter")

// MissingParameterError reports a required verification input that was empty.
// It signals a caller bug, not an untrusted request.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("webhook: missing required parameter %q", e.Name)
}

func (e *MissingParameterError) Is(target error) bool {
	return target == ErrMissingParameter
}

// VerifyOptions carries the inputs of a single verification.
type VerifyOptions struct {
	// Body is the raw request body exactly as received.
	Body []byte
	// Signature is the hex value of the x-webhook-signature header.
	Signature string
	// Timestamp is the x-webhook-timestamp header: epoch milliseconds, base 10.
	Timestamp string
	// Secret is the shared API key.
	Secret string
	// MaxAge bounds |now - timestamp|. Zero or negative means DefaultMaxAge.
	MaxAge time.Duration
}

// Verifier checks callback authenticity. The zero value uses the wall clock.
type Verifier struct {
	Now func() time.Time
}

// NewVerifier returns a Verifier reading time from now.
func NewVerifier(now func() time.Time) *Verifier {
	return &Verifier{Now: now}
}

// VerifyWebhook verifies opts against the wall clock.
func VerifyWebhook(opts VerifyOptions) (bool, error) {
	return (&Verifier{}).Verify(opts)
}

// Verify reports whether opts describes an authentic, fresh callback.
//
// The only error returned is a *MissingParameterError. Malformed timestamps,
// stale timestamps and signature mismatches all yield false with a nil error,
// so callers cannot tell which check rejected the request.
func (v *Verifier) Verify(opts VerifyOptions) (bool, error) {
	if err := checkRequired(opts); err != nil {
		return false, err
	}

	timestampMs, err := strconv.ParseInt(opts.Timestamp, 10, 64)
	if err != nil {
		return false, nil
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	elapsed := v.now().UnixMilli() - timestampMs
	if elapsed < 0 {
		elapsed = -elapsed
	}
	// elapsed overflows to a negative value only for absurd timestamps.
	if elapsed < 0 || elapsed > maxAge.Milliseconds() {
		return false, nil
	}

	expected := signature.Sign(opts.Body, opts.Secret, opts.Timestamp)
	return compare(opts.Signature, expected), nil
}

func (v *Verifier) now() time.Time {
	if v != nil && v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func checkRequired(opts VerifyOptions) error {
	switch {
	case len(opts.Body) == 0:
		return &MissingParameterError{Name: "body"}
	case opts.Signature == "":
		return &MissingParameterError{Name: "signature"}
	case opts.Timestamp == "":
		return &MissingParameterError{Name: "timestamp"}
	case opts.Secret == "":
		return &MissingParameterError{Name: "secret"}
	}
	return nil
}

// compare never lets a comparison failure escape as anything but false.
func compare(got, want string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return signature.Equal(got, want)
}
