package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"venue-outreach/internal/outreach"
)

// VapiProvider talks to the Vapi REST API.
//
// Transient errors (5xx, 429, network) are retried with backoff a bounded
// number of times; anything surviving the retries is a dispatch/poll
// failure for the caller to classify.
type VapiProvider struct {
	baseURL       string
	apiKey        string
	phoneNumberID string
	assistantID   string

	client *http.Client

	maxAttempts int
	backoffBase time.Duration
}

var _ outreach.CallProvider = (*VapiProvider)(nil)

type VapiConfig struct {
	BaseURL       string
	APIKey        string
	PhoneNumberID string
	AssistantID   string

	// HTTPTimeout bounds a single request, not the whole retry budget.
	HTTPTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

func NewVapiProvider(cfg VapiConfig) (*VapiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("voice: vapi api key is required")
	}
	if cfg.PhoneNumberID == "" || cfg.AssistantID == "" {
		return nil, errors.New("voice: vapi phone number id and assistant id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.vapi.ai"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	return &VapiProvider{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		phoneNumberID: cfg.PhoneNumberID,
		assistantID:   cfg.AssistantID,
		client:        &http.Client{Timeout: cfg.HTTPTimeout},
		maxAttempts:   cfg.MaxAttempts,
		backoffBase:   cfg.BackoffBase,
	}, nil
}

func (p *VapiProvider) Name() string { return "vapi" }

func (p *VapiProvider) HealthCheck(ctx context.Context) error {
	// Listing the configured assistant is the cheapest authenticated call.
	_, err := p.do(ctx, http.MethodGet, "/assistant/"+p.assistantID, nil)
	return err
}

type vapiCreateCallBody struct {
	PhoneNumberID      string       `json:"phoneNumberId"`
	AssistantID        string       `json:"assistantId"`
	Customer           vapiCustomer `json:"customer"`
	AssistantOverrides struct {
		VariableValues map[string]string `json:"variableValues"`
	} `json:"assistantOverrides"`
}

type vapiCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type vapiCall struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	EndedReason string  `json:"endedReason,omitempty"`
	Transcript  string  `json:"transcript,omitempty"`
	Artifact    struct {
		Transcript string `json:"transcript,omitempty"`
	} `json:"artifact"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func (p *VapiProvider) CreateCall(ctx context.Context, req outreach.CreateCallRequest) (outreach.CreateCallResult, error) {
	if req.ContactNumber == "" {
		return outreach.CreateCallResult{}, errors.New("voice: contact number is required")
	}

	body := vapiCreateCallBody{
		PhoneNumberID: p.phoneNumberID,
		AssistantID:   p.assistantID,
		Customer:      vapiCustomer{Number: req.ContactNumber, Name: req.ContactName},
	}
	body.AssistantOverrides.VariableValues = map[string]string{
		"event_id":   req.EventID,
		"venue_id":   req.VenueID,
		"attempt_id": req.AttemptID,
		"venue_name": req.ContactName,
	}

	raw, err := p.do(ctx, http.MethodPost, "/call", body)
	if err != nil {
		return outreach.CreateCallResult{}, err
	}

	var call vapiCall
	if err := json.Unmarshal(raw, &call); err != nil {
		return outreach.CreateCallResult{}, fmt.Errorf("voice: decode create call response: %w", err)
	}
	if call.ID == "" {
		return outreach.CreateCallResult{}, errors.New("voice: platform returned no call id")
	}
	return outreach.CreateCallResult{ExternalRef: call.ID}, nil
}

func (p *VapiProvider) GetCallStatus(ctx context.Context, externalRef string) (outreach.CallStatusResult, error) {
	if externalRef == "" {
		return outreach.CallStatusResult{}, errors.New("voice: external ref is required")
	}

	raw, err := p.do(ctx, http.MethodGet, "/call/"+externalRef, nil)
	if err != nil {
		return outreach.CallStatusResult{}, err
	}

	var call vapiCall
	if err := json.Unmarshal(raw, &call); err != nil {
		return outreach.CallStatusResult{}, fmt.Errorf("voice: decode call status: %w", err)
	}

	out := outreach.CallStatusResult{
		ExternalRef: call.ID,
		Status:      call.Status,
		EndedReason: call.EndedReason,
		Transcript:  call.Transcript,
		Raw:         string(raw),
	}
	if out.Transcript == "" {
		out.Transcript = call.Artifact.Transcript
	}
	if call.StartedAt != nil && call.EndedAt != nil {
		out.DurationSeconds = int(call.EndedAt.Sub(*call.StartedAt) / time.Second)
	}
	return out, nil
}

// do executes one API request with bounded retries on transient failures.
func (p *VapiProvider) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := p.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return raw, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("voice: vapi %s %s: status %d", method, path, resp.StatusCode)
			continue
		default:
			// Client errors are not retried.
			return nil, fmt.Errorf("voice: vapi %s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw, 200))
		}
	}
	return nil, fmt.Errorf("voice: vapi %s %s failed after %d attempts: %w", method, path, p.maxAttempts, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
