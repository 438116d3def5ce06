package transport

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/potooio/herald/internal/types"
)

// EnvelopeType identifies herald email envelopes on the wire.
const EnvelopeType = "herald.email"

// Envelope is the JSON payload sent to relays and brokers.
type Envelope struct {
	Type          string      `json:"type"`
	SchemaVersion string      `json:"schemaVersion"`
	MessageID     string      `json:"messageId"`
	Timestamp     string      `json:"timestamp"`
	From          string      `json:"from,omitempty"`
	Email         types.Email `json:"email"`
}

func newEnvelope(from string, email types.Email) Envelope {
	return Envelope{
		Type:          EnvelopeType,
		SchemaVersion: "1",
		MessageID:     uuid.NewString(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		From:          from,
		Email:         email,
	}
}

func validateEmail(email types.Email) error {
	if len(email.To) == 0 {
		return errors.New("email has no recipients")
	}
	for _, to := range email.To {
		if to == "" {
			return errors.New("email has an empty recipient")
		}
	}
	return nil
}

// sendError wraps an error with a retryable flag.
type sendError struct {
	err       error
	retryable bool
}

func (e *sendError) Error() string { return e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

// IsRetryable reports whether err is a transient failure worth retrying.
// Errors that carry no classification are treated as retryable.
func IsRetryable(err error) bool {
	var se *sendError
	if errors.As(err, &se) {
		return se.retryable
	}
	return true
}

func permanent(format string, args ...any) error {
	return &sendError{err: fmt.Errorf(format, args...), retryable: false}
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords and query parameter values.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
