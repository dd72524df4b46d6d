package extraction

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

// HTTPExtractor calls the extraction collaborator over HTTP. The
// collaborator owns the LLM prompt/model choice; this adapter only speaks
// the typed request/response contract.
type HTTPExtractor struct {
	url    string
	apiKey string
	client *http.Client
}

var _ outreach.Extractor = (*HTTPExtractor)(nil)

type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewHTTPExtractor(cfg HTTPConfig) (*HTTPExtractor, error) {
	if cfg.URL == "" {
		return nil, errors.New("extraction: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPExtractor{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// extractionResponse mirrors outreach.NegotiationResult's optional-field
// shape. Fields absent from the response stay nil/empty rather than being
// guessed.
type extractionResponse struct {
	InitialQuote          *int64 `json:"venue_initial_quote"`
	InitialQuoteBreakdown string `json:"venue_initial_quote_breakdown"`
	Counteroffer          *int64 `json:"agent_counteroffer"`
	CounterofferBreakdown string `json:"agent_counteroffer_breakdown"`
	CounterofferReasoning string `json:"agent_counteroffer_reasoning"`
	FinalQuote            *int64 `json:"venue_final_quote"`
	FinalQuoteBreakdown   string `json:"venue_final_quote_breakdown"`
	Availability          string `json:"availability"`
	Flexibility           string `json:"flexibility"`
	Restrictions          string `json:"restrictions"`
	Notes                 string `json:"notes"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, req outreach.ExtractionRequest) (outreach.NegotiationResult, error) {
	if req.Transcript == "" {
		return outreach.NegotiationResult{}, errors.New("extraction: transcript is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return outreach.NegotiationResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return outreach.NegotiationResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return outreach.NegotiationResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return outreach.NegotiationResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return outreach.NegotiationResult{}, fmt.Errorf("extraction: status %d", resp.StatusCode)
	}

	var out extractionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return outreach.NegotiationResult{}, fmt.Errorf("extraction: decode response: %w", err)
	}

	// Boundary validation: quotes must be non-negative when present.
	for _, q := range []*int64{out.InitialQuote, out.Counteroffer, out.FinalQuote} {
		if q != nil && *q < 0 {
			return outreach.NegotiationResult{}, errors.New("extraction: negative quote in response")
		}
	}

	return outreach.NegotiationResult{
		AttemptID:             req.AttemptID,
		VenueID:               req.Venue.ID,
		EventID:               req.Event.ID,
		InitialQuote:          out.InitialQuote,
		InitialQuoteBreakdown: out.InitialQuoteBreakdown,
		Counteroffer:          out.Counteroffer,
		CounterofferBreakdown: out.CounterofferBreakdown,
		CounterofferReasoning: out.CounterofferReasoning,
		FinalQuote:            out.FinalQuote,
		FinalQuoteBreakdown:   out.FinalQuoteBreakdown,
		Availability:          out.Availability,
		Flexibility:           out.Flexibility,
		Restrictions:          out.Restrictions,
		Notes:                 out.Notes,
	}, nil
}
