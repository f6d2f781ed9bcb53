package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/heartline/backend/internal/config"
)

// VonageProvider implements VerifyProvider against the Vonage Verify v2 API.
//
// Issue:  POST {base}/v2/verify              202 {"request_id": "..."}
// Check:  POST {base}/v2/verify/{request_id} 200 {"request_id": "...", "status": "completed"}
//
// Errors come back as RFC 7807 problem details.
type VonageProvider struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

type vonageWorkflow struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
}

type vonageIssueRequest struct {
	Brand    string           `json:"brand"`
	Workflow []vonageWorkflow `json:"workflow"`
}

type vonageIssueResponse struct {
	RequestID string `json:"request_id"`
}

type vonageCheckRequest struct {
	Code string `json:"code"`
}

type vonageProblem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func NewVonageProvider(cfg *config.Config) *VonageProvider {
	return &VonageProvider{
		baseURL:   strings.TrimRight(cfg.VonageBaseURL, "/"),
		apiKey:    cfg.VonageAPIKey,
		apiSecret: cfg.VonageAPISecret,
		client:    &http.Client{Timeout: cfg.VerifyHTTPTimeout},
	}
}

// GetProviderName returns "vonage"
func (p *VonageProvider) GetProviderName() string {
	return "vonage"
}

// Issue starts an SMS workflow for phone. Vonage expects the number without
// the leading "+".
func (p *VonageProvider) Issue(ctx context.Context, phone, brand string) (string, error) {
	payload := vonageIssueRequest{
		Brand:    brand,
		Workflow: []vonageWorkflow{{Channel: "sms", To: strings.TrimPrefix(phone, "+")}},
	}

	var out vonageIssueResponse
	if err := p.do(ctx, "issue", p.baseURL+"/v2/verify", payload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.RequestID) == "" {
		return "", fmt.Errorf("issue: %w: missing request_id", ErrMalformedProviderResponse)
	}
	return out.RequestID, nil
}

// Check submits code for requestID.
func (p *VonageProvider) Check(ctx context.Context, requestID, code string) error {
	endpoint := p.baseURL + "/v2/verify/" + url.PathEscape(requestID)
	return p.do(ctx, "check", endpoint, vonageCheckRequest{Code: code}, nil)
}

func (p *VonageProvider) do(ctx context.Context, op, endpoint string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.apiKey, p.apiSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var problem vonageProblem
		_ = json.Unmarshal(body, &problem)
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Type:       problem.Type,
			Title:      problem.Title,
			Detail:     problem.Detail,
			Failure:    ClassifyProviderError(resp.StatusCode, problem.Type),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedProviderResponse, err)
	}
	return nil
}
