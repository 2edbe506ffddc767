package whatsapp

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

var _ notification.WhatsAppProvider = (*TermiiProvider)(nil)

const (
	termiiBaseURL  = "https://v3.api.termii.com"
	termiiSendPath = "/api/sms/send"

	// Termii caps recipients per call on the whatsapp channel too.
	termiiMaxRecipients = 100

	termiiSingleTimeout = 30 * time.Second
	termiiBulkTimeout   = 60 * time.Second

	// Per-message WhatsApp cost on Termii, in USD.
	termiiWhatsAppCost = "0.005"
)

type termiiResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// TermiiProvider sends WhatsApp messages through the Termii API, including
// media messages (images, audio, PDF, MP4). Recipient lists beyond the
// carrier cap are split into concurrent chunks and merged.
type TermiiProvider struct {
	apiKey     string
	senderID   string
	baseURL    string
	httpClient *http.Client
}

// NewTermiiProvider creates a new Termii WhatsApp provider.
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

// SendWhatsApp delivers the message (or media) to every recipient.
func (p *TermiiProvider) SendWhatsApp(ctx context.Context, to []string, message string, media *notification.Media) notification.DeliveryOutcome {
	if len(to) == 1 {
		return p.send(ctx, to[0], []string{to[0]}, message, media, termiiSingleTimeout)
	}

	var chunks [][]string
	for start := 0; start < len(to); start += termiiMaxRecipients {
		end := start + termiiMaxRecipients
		if end > len(to) {
			end = len(to)
		}
		chunks = append(chunks, to[start:end])
	}

	outcomes := make([]notification.DeliveryOutcome, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []string) {
			defer wg.Done()
			outcomes[i] = p.send(ctx, notification.BulkRecipient, chunk, message, media, termiiBulkTimeout)
		}(i, chunk)
	}
	wg.Wait()

	return notification.MergeOutcomes(p.Name(), outcomes)
}

// send issues one carrier call covering the given recipients. label is the
// recipient marker recorded on the outcome ("bulk" for chunk calls).
func (p *TermiiProvider) send(ctx context.Context, label string, recipients []string, message string, media *notification.Media, timeout time.Duration) notification.DeliveryOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := map[string]any{
		"api_key": p.apiKey,
		"from":    p.senderID,
		"type":    "plain",
		"channel": "whatsapp",
	}
	if len(recipients) == 1 {
		payload["to"] = recipients[0]
	} else {
		payload["to"] = recipients
	}
	if media != nil {
		payload["media"] = map[string]string{"url": media.URL, "caption": media.Caption}
	} else {
		payload["sms"] = message
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return notification.FailedOutcome(p.Name(), label, fmt.Sprintf("marshaling payload: %v", err), len(recipients))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+termiiSendPath, bytes.NewReader(body))
	if err != nil {
		return notification.FailedOutcome(p.Name(), label, fmt.Sprintf("creating request: %v", err), len(recipients))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timeout"
		}
		return notification.FailedOutcome(p.Name(), label, msg, len(recipients))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return notification.FailedOutcome(p.Name(), label, fmt.Sprintf("reading response: %v", err), len(recipients))
	}

	var parsed termiiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return notification.FailedOutcome(p.Name(), label, fmt.Sprintf("carrier returned status %d with unparseable body", resp.StatusCode), len(recipients))
	}

	if resp.StatusCode != http.StatusOK || parsed.Code != "ok" {
		errMsg := parsed.Message
		if errMsg == "" {
			errMsg = fmt.Sprintf("carrier rejected request (status %d)", resp.StatusCode)
		}
		out := notification.FailedOutcome(p.Name(), label, errMsg, len(recipients))
		out.ProviderResponse = string(raw)
		return out
	}

	cost := termiiWhatsAppCost
	if n := len(recipients); n > 1 {
		if per, err := decimal.NewFromString(termiiWhatsAppCost); err == nil {
			cost = per.Mul(decimal.NewFromInt(int64(n))).String()
		}
	}

	out := notification.SentOutcome(p.Name(), label, parsed.MessageID, cost, string(raw))
	out.TotalRecipients = len(recipients)
	out.SuccessfulCount = len(recipients)
	if media != nil {
		out.Metadata = map[string]string{"media_url": media.URL}
	}
	return out
}
