package sms

import (
	"context"
	"sync"

	"outreach/internal/domain/notification"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var _ notification.SMSProvider = (*TwilioProvider)(nil)

// Per-message SMS cost on Twilio, in USD.
const twilioSMSCost = "0.0075"

// twilioMaxConcurrent caps simultaneous carrier calls during per-recipient
// fan-out. Twilio has no bulk endpoint, so every recipient is its own call.
const twilioMaxConcurrent = 50

// TwilioProvider sends SMS through the Twilio REST API.
type TwilioProvider struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioProvider creates a new Twilio SMS provider.
func NewTwilioProvider(accountSID, authToken, fromNumber string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{client: client, fromNumber: fromNumber}
}

// Name returns the carrier identifier recorded in audit rows.
func (p *TwilioProvider) Name() string {
	return "twilio"
}

// SendSMS fans the recipient list out as bounded concurrent per-recipient
// calls and merges the results. Per-recipient failures are absorbed into the
// merged outcome.
func (p *TwilioProvider) SendSMS(ctx context.Context, to []string, message string, _ notification.SMSOptions) notification.DeliveryOutcome {
	if len(to) == 1 {
		return p.sendOne(ctx, to[0], message)
	}

	outcomes := make([]notification.DeliveryOutcome, len(to))
	sem := make(chan struct{}, twilioMaxConcurrent)
	var wg sync.WaitGroup
	for i, recipient := range to {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = p.sendOne(ctx, recipient, message)
		}(i, recipient)
	}
	wg.Wait()

	return notification.MergeOutcomes(p.Name(), outcomes)
}

// sendOne delivers to one recipient, honoring context cancellation between
// calls (the Twilio SDK itself is not context-aware).
func (p *TwilioProvider) sendOne(ctx context.Context, recipient, message string) notification.DeliveryOutcome {
	if err := ctx.Err(); err != nil {
		return notification.FailedOutcome(p.Name(), recipient, sendErrorMessage(err), 1)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetBody(message)
	params.SetFrom(p.fromNumber)
	params.SetTo(recipient)

	resp, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, err.Error(), 1)
	}

	var sid string
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	return notification.SentOutcome(p.Name(), recipient, sid, twilioSMSCost, "")
}
