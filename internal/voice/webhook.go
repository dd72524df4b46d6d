package voice

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"venue-outreach/internal/outreach"
)

// Vapi delivers server messages as JSON bodies with a "message" envelope.
// The two types this service consumes:
//
//   - "status-update": call progressed (queued -> ringing -> in-progress)
//   - "end-of-call-report": terminal outcome, carries the transcript
//
// Anything else (tool calls, transcripts mid-call) is acknowledged and
// ignored here.

type WebhookMessage struct {
	Message struct {
		Type string `json:"type"`

		Status      string `json:"status,omitempty"`
		EndedReason string `json:"endedReason,omitempty"`

		Call struct {
			ID       string `json:"id"`
			Customer struct {
				Number string `json:"number"`
			} `json:"customer"`
		} `json:"call"`

		// Customer also appears at the message level on some payload versions.
		Customer struct {
			Number string `json:"number"`
		} `json:"customer"`

		Transcript string `json:"transcript,omitempty"`
		Artifact   struct {
			Transcript string `json:"transcript,omitempty"`
		} `json:"artifact"`

		DurationSeconds float64 `json:"durationSeconds,omitempty"`
	} `json:"message"`
}

const (
	MessageTypeStatusUpdate    = "status-update"
	MessageTypeEndOfCallReport = "end-of-call-report"
)

var ErrUnsupportedMessage = errors.New("voice: unsupported webhook message type")

func ParseWebhook(r *http.Request) (WebhookMessage, []byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return WebhookMessage{}, nil, err
	}
	var m WebhookMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return WebhookMessage{}, raw, err
	}
	if m.Message.Type == "" {
		return WebhookMessage{}, raw, errors.New("voice: webhook message type missing")
	}
	return m, raw, nil
}

// ToSignal converts a webhook message to the orchestrator's signal shape.
// Returns ErrUnsupportedMessage for message types that carry no lifecycle
// information.
func (m WebhookMessage) ToSignal(raw []byte) (outreach.Signal, error) {
	channel := m.Message.Call.Customer.Number
	if channel == "" {
		channel = m.Message.Customer.Number
	}

	sig := outreach.Signal{
		ExternalRef:    m.Message.Call.ID,
		ContactChannel: channel,
		Raw:            string(raw),
	}

	switch m.Message.Type {
	case MessageTypeStatusUpdate:
		switch m.Message.Status {
		case "in-progress", "ringing":
			sig.Status = outreach.SignalStatusInProgress
		case "ended":
			sig.Status = outreach.MapEndedReason(m.Message.EndedReason)
		default:
			// queued/scheduled updates carry nothing actionable.
			return outreach.Signal{}, ErrUnsupportedMessage
		}
	case MessageTypeEndOfCallReport:
		sig.Status = outreach.MapEndedReason(m.Message.EndedReason)
		sig.Transcript = m.Message.Transcript
		if sig.Transcript == "" {
			sig.Transcript = m.Message.Artifact.Transcript
		}
		sig.DurationSeconds = int(m.Message.DurationSeconds)
	default:
		return outreach.Signal{}, ErrUnsupportedMessage
	}

	return sig, nil
}
