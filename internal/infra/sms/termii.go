package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"outreach/internal/domain/notification"

	"github.com/shopspring/decimal"
)

var _ notification.SMSProvider = (*TermiiProvider)(nil)

const (
	termiiBaseURL      = "https://v3.api.termii.com"
	termiiSendPath     = "/api/sms/send"
	termiiBulkSendPath = "/api/sms/send/bulk"

	// Termii caps recipients per bulk call.
	termiiMaxRecipients = 100

	termiiSingleTimeout = 30 * time.Second
	termiiBulkTimeout   = 60 * time.Second

	// Per-message SMS cost on the Nigerian route, in USD.
	termiiSMSCost = "0.003"
)

// termiiResponse is the carrier's response shape for both endpoints.
type termiiResponse struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	MessageID string          `json:"message_id"`
	Balance   json.RawMessage `json:"balance"`
}

// TermiiProvider sends SMS through the Termii API. Single-recipient requests
// use the lighter send endpoint; larger lists go through the bulk endpoint in
// concurrent chunks of at most 100 recipients, merged into one outcome.
type TermiiProvider struct {
	apiKey     string
	senderID   string
	baseURL    string
	httpClient *http.Client
}

// NewTermiiProvider creates a new Termii SMS provider.
func NewTermiiProvider(apiKey, senderID string) *TermiiProvider {
	return &TermiiProvider{
		apiKey:     apiKey,
		senderID:   senderID,
		baseURL:    termiiBaseURL,
		httpClient: &http.Client{},
	}
}

// Name returns the carrier identifier recorded in audit rows.
func (p *TermiiProvider) Name() string {
	return "termii"
}

// SendSMS delivers the message to every recipient. Chunk failures are
// absorbed into the merged outcome; a bad chunk never aborts its siblings.
func (p *TermiiProvider) SendSMS(ctx context.Context, to []string, message string, opts notification.SMSOptions) notification.DeliveryOutcome {
	if len(to) == 1 {
		return p.sendSingle(ctx, to[0], message, opts)
	}

	chunks := chunkRecipients(to, termiiMaxRecipients)
	outcomes := make([]notification.DeliveryOutcome, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []string) {
			defer wg.Done()
			outcomes[i] = p.sendChunk(ctx, chunk, message, opts)
		}(i, chunk)
	}
	wg.Wait()

	return notification.MergeOutcomes(p.Name(), outcomes)
}

// sendSingle uses the per-recipient endpoint.
func (p *TermiiProvider) sendSingle(ctx context.Context, recipient, message string, opts notification.SMSOptions) notification.DeliveryOutcome {
	payload := map[string]any{
		"api_key": p.apiKey,
		"to":      recipient,
		"from":    p.senderID,
		"sms":     message,
		"type":    opts.MessageType,
		"channel": opts.Route,
	}

	resp, raw, err := p.post(ctx, termiiSendPath, payload, termiiSingleTimeout)
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, sendErrorMessage(err), 1)
	}
	if resp.Code != "ok" {
		return failedWithResponse(p.Name(), recipient, carrierError(resp), 1, raw)
	}
	return notification.SentOutcome(p.Name(), recipient, resp.MessageID, termiiSMSCost, raw)
}

// sendChunk issues one bulk carrier call for up to 100 recipients.
func (p *TermiiProvider) sendChunk(ctx context.Context, chunk []string, message string, opts notification.SMSOptions) notification.DeliveryOutcome {
	payload := map[string]any{
		"api_key": p.apiKey,
		"to":      chunk,
		"from":    p.senderID,
		"sms":     message,
		"type":    opts.MessageType,
		"channel": opts.Route,
	}

	resp, raw, err := p.post(ctx, termiiBulkSendPath, payload, termiiBulkTimeout)
	if err != nil {
		return notification.FailedOutcome(p.Name(), notification.BulkRecipient, sendErrorMessage(err), len(chunk))
	}
	if resp.Code != "ok" {
		return failedWithResponse(p.Name(), notification.BulkRecipient, carrierError(resp), len(chunk), raw)
	}

	outcome := notification.SentOutcome(p.Name(), notification.BulkRecipient, resp.MessageID, bulkCost(termiiSMSCost, len(chunk)), raw)
	outcome.TotalRecipients = len(chunk)
	outcome.SuccessfulCount = len(chunk)
	return outcome
}

// post issues one JSON request with the per-call timeout and parses the
// carrier response. Any transport or decode failure comes back as an error
// for the caller to convert into a failed outcome.
func (p *TermiiProvider) post(ctx context.Context, path string, payload any, timeout time.Duration) (*termiiResponse, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}

	var parsed termiiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, "", fmt.Errorf("carrier returned status %d with unparseable body", resp.StatusCode)
	}
	// A non-2xx is a failure even when the body still claims ok.
	if resp.StatusCode != http.StatusOK && (parsed.Code == "" || parsed.Code == "ok") {
		parsed.Code = fmt.Sprintf("http_%d", resp.StatusCode)
	}
	return &parsed, string(raw), nil
}

// chunkRecipients partitions recipients into carrier-sized chunks.
func chunkRecipients(to []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(to); start += size {
		end := start + size
		if end > len(to) {
			end = len(to)
		}
		chunks = append(chunks, to[start:end])
	}
	return chunks
}

// bulkCost multiplies the per-message cost by the chunk size, keeping the
// decimal-string representation.
func bulkCost(perMessage string, count int) string {
	per, err := decimal.NewFromString(perMessage)
	if err != nil {
		return "0"
	}
	return per.Mul(decimal.NewFromInt(int64(count))).String()
}

// sendErrorMessage normalizes transport failures into audit-friendly text.
func sendErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timeout"
	}
	return err.Error()
}

// carrierError extracts the carrier's soft-failure message.
func carrierError(resp *termiiResponse) string {
	if resp.Message != "" {
		return resp.Message
	}
	return fmt.Sprintf("carrier rejected request (code %s)", resp.Code)
}

// failedWithResponse builds a failed outcome retaining the raw response.
func failedWithResponse(provider, recipient, errMsg string, recipients int, raw string) notification.DeliveryOutcome {
	o := notification.FailedOutcome(provider, recipient, errMsg, recipients)
	o.ProviderResponse = raw
	return o
}
