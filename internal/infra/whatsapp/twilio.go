package whatsapp

import (
	"context"
	"strings"
	"sync"

	"outreach/internal/domain/notification"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var _ notification.WhatsAppProvider = (*TwilioProvider)(nil)

// Per-message WhatsApp cost on Twilio, in USD.
const twilioWhatsAppCost = "0.0042"

const twilioMaxConcurrent = 50

// TwilioProvider sends WhatsApp messages through the Twilio REST API, which
// addresses WhatsApp endpoints with a "whatsapp:" prefix on both sides.
type TwilioProvider struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioProvider creates a new Twilio WhatsApp provider.
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

// SendWhatsApp fans the recipient list out as bounded concurrent
// per-recipient calls and merges the results.
func (p *TwilioProvider) SendWhatsApp(ctx context.Context, to []string, message string, media *notification.Media) notification.DeliveryOutcome {
	if len(to) == 1 {
		return p.sendOne(ctx, to[0], message, media)
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
			outcomes[i] = p.sendOne(ctx, recipient, message, media)
		}(i, recipient)
	}
	wg.Wait()

	return notification.MergeOutcomes(p.Name(), outcomes)
}

func (p *TwilioProvider) sendOne(ctx context.Context, recipient, message string, media *notification.Media) notification.DeliveryOutcome {
	if err := ctx.Err(); err != nil {
		return notification.FailedOutcome(p.Name(), recipient, err.Error(), 1)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(whatsappAddress(p.fromNumber))
	params.SetTo(whatsappAddress(recipient))
	if media != nil {
		params.SetMediaUrl([]string{media.URL})
		if media.Caption != "" {
			params.SetBody(media.Caption)
		}
	} else {
		params.SetBody(message)
	}

	resp, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, err.Error(), 1)
	}

	var sid string
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	return notification.SentOutcome(p.Name(), recipient, sid, twilioWhatsAppCost, "")
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
