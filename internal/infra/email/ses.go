package email

import (
	"context"
	"sync"
	"time"

	"outreach/internal/domain/notification"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

var _ notification.EmailProvider = (*SESProvider)(nil)

// Per-message cost on SES ($0.10 per 1000 emails), in USD.
const sesEmailCost = "0.0001"

const (
	sesMaxConcurrent = 50
	sesCallTimeout   = 30 * time.Second
)

// SESProvider sends email through AWS SES. SES is addressed per recipient
// here (shared To headers would leak the recipient list), so batches fan out
// as bounded concurrent calls merged into one outcome.
type SESProvider struct {
	client    *ses.Client
	fromEmail string
}

// NewSESProvider creates a new SES email provider with static credentials.
func NewSESProvider(ctx context.Context, accessKey, secretKey, region, fromEmail string) (*SESProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, err
	}
	return &SESProvider{client: ses.NewFromConfig(cfg), fromEmail: fromEmail}, nil
}

// Name returns the carrier identifier recorded in audit rows.
func (p *SESProvider) Name() string {
	return "aws_ses"
}

// SendEmail delivers the message to every recipient and merges per-recipient
// results; individual failures never abort the rest of the batch.
func (p *SESProvider) SendEmail(ctx context.Context, to []string, subject, body, htmlBody string) notification.DeliveryOutcome {
	if len(to) == 1 {
		return p.sendOne(ctx, to[0], subject, body, htmlBody)
	}

	outcomes := make([]notification.DeliveryOutcome, len(to))
	sem := make(chan struct{}, sesMaxConcurrent)
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

func (p *SESProvider) sendOne(ctx context.Context, recipient, subject, body, htmlBody string) notification.DeliveryOutcome {
	ctx, cancel := context.WithTimeout(ctx, sesCallTimeout)
	defer cancel()

	sesBody := &sestypes.Body{
		Text: &sestypes.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
	}
	if htmlBody != "" {
		sesBody.Html = &sestypes.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source:      aws.String(p.fromEmail),
		Destination: &sestypes.Destination{ToAddresses: []string{recipient}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body:    sesBody,
		},
	}

	resp, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return notification.FailedOutcome(p.Name(), recipient, err.Error(), 1)
	}
	return notification.SentOutcome(p.Name(), recipient, aws.ToString(resp.MessageId), sesEmailCost, "")
}
