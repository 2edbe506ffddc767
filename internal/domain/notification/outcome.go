package notification

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeStatus is the per-call delivery status reported by an adapter.
type OutcomeStatus string

const (
	OutcomeSent   OutcomeStatus = "sent"
	OutcomeFailed OutcomeStatus = "failed"
)

// BulkRecipient marks an outcome that covers multiple recipients in one
// carrier call.
const BulkRecipient = "bulk"

// DeliveryOutcome is the normalized result of one adapter send, possibly
// already merged across carrier chunks. Adapters never return errors for
// delivery failures: timeouts, non-2xx responses, and carrier soft failures
// all become failed outcomes so one bad chunk cannot abort its siblings.
type DeliveryOutcome struct {
	Success          bool
	Recipient        string // address, or "bulk" for multi-recipient calls
	MessageID        string
	Provider         string
	Status           OutcomeStatus
	Error            string
	Cost             string // decimal as string, never a float
	SentAt           *time.Time
	ProviderResponse string // raw carrier response, size-bounded
	Metadata         map[string]string

	TotalRecipients int
	SuccessfulCount int
	FailedCount     int
}

// SentOutcome builds a successful single-recipient outcome.
func SentOutcome(provider, recipient, messageID, cost, rawResponse string) DeliveryOutcome {
	now := time.Now().UTC()
	return DeliveryOutcome{
		Success:          true,
		Recipient:        recipient,
		MessageID:        messageID,
		Provider:         provider,
		Status:           OutcomeSent,
		Cost:             cost,
		SentAt:           &now,
		ProviderResponse: rawResponse,
		TotalRecipients:  1,
		SuccessfulCount:  1,
	}
}

// FailedOutcome builds a failed outcome covering the given recipient count.
func FailedOutcome(provider, recipient, errMsg string, recipients int) DeliveryOutcome {
	return DeliveryOutcome{
		Recipient:       recipient,
		Provider:        provider,
		Status:          OutcomeFailed,
		Error:           errMsg,
		Cost:            "0",
		TotalRecipients: recipients,
		FailedCount:     recipients,
	}
}

// MergeOutcomes folds per-chunk (or per-recipient) outcomes into one
// aggregate. The fold is commutative — counts and costs are sums, message IDs
// and errors are joined — so concurrent chunk completion order is irrelevant.
func MergeOutcomes(provider string, outcomes []DeliveryOutcome) DeliveryOutcome {
	merged := DeliveryOutcome{
		Recipient: BulkRecipient,
		Provider:  provider,
		Cost:      "0",
	}
	if len(outcomes) == 1 {
		return outcomes[0]
	}

	cost := decimal.Zero
	var messageIDs, errs, responses []string
	for _, o := range outcomes {
		merged.TotalRecipients += o.TotalRecipients
		merged.SuccessfulCount += o.SuccessfulCount
		merged.FailedCount += o.FailedCount

		if c, err := decimal.NewFromString(o.Cost); err == nil {
			cost = cost.Add(c)
		}
		if o.MessageID != "" {
			messageIDs = append(messageIDs, o.MessageID)
		}
		if o.Error != "" {
			errs = append(errs, o.Error)
		}
		if o.ProviderResponse != "" {
			responses = append(responses, o.ProviderResponse)
		}
		if o.SentAt != nil && (merged.SentAt == nil || o.SentAt.Before(*merged.SentAt)) {
			merged.SentAt = o.SentAt
		}
	}

	merged.Cost = cost.String()
	merged.MessageID = strings.Join(messageIDs, ",")
	merged.Error = strings.Join(errs, "; ")
	merged.ProviderResponse = boundResponse(strings.Join(responses, "\n"))
	merged.Success = merged.SuccessfulCount > 0 && merged.FailedCount == 0
	if merged.Success {
		merged.Status = OutcomeSent
	} else {
		merged.Status = OutcomeFailed
	}
	return merged
}

// maxResponseBytes bounds the raw provider response retained for audit.
const maxResponseBytes = 8192

func boundResponse(s string) string {
	if len(s) > maxResponseBytes {
		return s[:maxResponseBytes]
	}
	return s
}
