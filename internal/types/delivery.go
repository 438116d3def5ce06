package types

// Email is a rendered message ready for a transport.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// Message is the output of the template renderer.
type Message struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// SendReceipt is returned by a transport on success.
type SendReceipt struct {
	MessageID string `json:"messageId"`
}

// Reason explains why a delivery was skipped, queued or failed.
type Reason string

const (
	ReasonQueued                 Reason = "queued"
	ReasonDisabled               Reason = "disabled"
	ReasonEventTypeDisabled      Reason = "event_type_disabled"
	ReasonPreferencesUnavailable Reason = "preferences_unavailable"
	ReasonNoEmail                Reason = "no_email"
	ReasonRateLimited            Reason = "rate_limited"
	ReasonRenderError            Reason = "render_error"
	ReasonTransportError         Reason = "transport_error"
	ReasonQueueError             Reason = "queue_error"
	ReasonPanic                  Reason = "panic"
	ReasonEmpty                  Reason = "empty"
	ReasonInstantFrequency       Reason = "instant_frequency"
)

// DeliveryResult is the outcome for one (event, recipient) pair. It is used
// for aggregation and logging only.
type DeliveryResult struct {
	UserID    string    `json:"userId"`
	EventType EventType `json:"eventType"`
	Success   bool      `json:"success"`
	Skipped   bool      `json:"skipped"`
	Reason    Reason    `json:"reason,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the delivery was attempted and did not succeed.
func (r DeliveryResult) Failed() bool {
	return !r.Success && !r.Skipped
}

// Summary aggregates delivery results.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Summarize counts results by outcome.
func Summarize(results []DeliveryResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Success:
			s.Successful++
		case r.Skipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
