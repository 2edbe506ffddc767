package email

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
)

var _ notification.EmailProvider = (*TermiiProvider)(nil)

const (
	termiiEmailURL      = "https://api.termii.com/api/email/send"
	termiiEmailTimeout  = 30 * time.Second
	termiiEmailCost     = "0"
	termiiMaxConcurrent = 50
)

// TermiiProvider sends transactional email through the Termii email API.
// Termii addresses one recipient per call, so batches fan out as bounded
// concurrent calls merged into one outcome.
type TermiiProvider struct {
	apiKey          string
	configurationID string
	baseURL         string
	httpClient      *http.Client
}

// NewTermiiProvider creates a new Termii email provider.
func NewTermiiProvider(apiKey, configurationID string) *TermiiProvider {
	return &TermiiProvider{
		apiKey:          apiKey,
		configurationID: configurationID,
		baseURL:         termiiEmailURL,
		httpClient:      &http.Client{},
	}
}

// Name returns the carrier identifier recorded in audit rows.
func (p *TermiiProvider) Name() string {
	return "termii"
}

// SendEmail delivers the message to every recipient and merges per-recipient
// results.
func (p *TermiiProvider) SendEmail(ctx context.Context, to []string, subject, body, htmlBody string) notification.DeliveryOutcome {
	if len(to) == 1 {
		return p.sendOne(ctx, to[0], subject, body, htmlBody)
	}

	outcomes := make([]notification.DeliveryOutcome, len(to))
	sem := make(chan struct{}, termiiMaxConcurrent)
	var wg sync.WaitGroup
	for i, recipient := range to {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = p.sendOne(ctx, recipient, subject, body, htmlBody)
		}(i, recipient)
	}
	wg.Wait()

	return notification.MergeOutcomes(p.Name(), outcomes)
}

func (p *TermiiProvider) sendOne(ctx context.Context, recipient, subject, body, htmlBody string) notification.DeliveryOutcome {
	ctx, cancel := context.WithTimeout(ctx, termiiEmailTimeout)
	defer cancel()

	content := body
	if htmlBody != "" {
		content = htmlBody
	}
	payload := map[string]any{
		"api_key":                p.apiKey,
		"email":                  recipient,
		"subject":                subject,
		"content":                content,
		"email_configuration_id": p.configurationID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, fmt.Sprintf("marshaling payload: %v", err), 1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(data))
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, fmt.Sprintf("creating request: %v", err), 1)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timeout"
		}
		return notification.FailedOutcome(p.Name(), recipient, msg, 1)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, fmt.Sprintf("reading response: %v", err), 1)
	}

	var parsed struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return notification.FailedOutcome(p.Name(), recipient, fmt.Sprintf("carrier returned status %d with unparseable body", resp.StatusCode), 1)
	}

	if resp.StatusCode != http.StatusOK || parsed.Code != "ok" {
		errMsg := parsed.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("carrier rejected request (status %d)", resp.StatusCode)
		}
		out := notification.FailedOutcome(p.Name(), recipient, errMsg, 1)
		out.ProviderResponse = string(raw)
		return out
	}

	return notification.SentOutcome(p.Name(), recipient, parsed.MessageID, termiiEmailCost, string(raw))
}
