package notification

import "time"

// BatchStatus is the batch-level outcome of a logical send request.
type BatchStatus string

const (
	StatusSent    BatchStatus = "sent"
	StatusFailed  BatchStatus = "failed"
	StatusPartial BatchStatus = "partial"
	StatusPending BatchStatus = "pending"
)

// batchStatusFor derives the batch status from aggregate counters.
func batchStatusFor(successful, failed int) BatchStatus {
	switch {
	case successful > 0 && failed == 0:
		return StatusSent
	case successful > 0 && failed > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// NotificationLog is one persisted row per logical send request, regardless
// of recipient count. Rows are append-only: created exactly once after the
// carrier call resolves, never updated.
type NotificationLog struct {
	ID              int64             `json:"id,omitempty"`
	BatchID         string            `json:"batch_id"`
	Type            Channel           `json:"type"`
	ChannelRoute    string            `json:"channel,omitempty"`
	Subject         string            `json:"subject,omitempty"`
	Message         string            `json:"message"`
	TotalRecipients int               `json:"total_recipients"`
	RecipientSample []string          `json:"recipient_sample,omitempty"`
	Status          BatchStatus       `json:"status"`
	SuccessfulCount int               `json:"successful_count"`
	FailedCount     int               `json:"failed_count"`
	Provider        string            `json:"provider"`
	ProviderMsgID   string            `json:"provider_message_id,omitempty"`
	ProviderResp    string            `json:"provider_response,omitempty"`
	TotalCost       string            `json:"total_cost"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedBy       string            `json:"created_by,omitempty"`
	CreatedByEmail  string            `json:"created_by_email,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	SentAt          *time.Time        `json:"sent_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// SuccessRate returns the percentage of recipients delivered, rounded to two
// decimal places at this presentation boundary.
func (l *NotificationLog) SuccessRate() float64 {
	if l.TotalRecipients == 0 {
		return 0
	}
	rate := float64(l.SuccessfulCount) / float64(l.TotalRecipients) * 100
	return float64(int(rate*100+0.5)) / 100
}

// sampleSize bounds the recipient preview kept for audit. The full recipient
// list is never stored.
const sampleSize = 3

func sampleRecipients(to []string) []string {
	if len(to) <= sampleSize {
		return append([]string(nil), to...)
	}
	return append([]string(nil), to[:sampleSize]...)
}

// ListFilter defines pagination and filtering for the log listing endpoint.
type ListFilter struct {
	Limit     int
	Offset    int
	Type      string
	Channel   string
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

// Normalize applies the listing defaults and bounds.
func (f *ListFilter) Normalize() {
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResponse wraps a paginated page of notification logs.
type ListResponse struct {
	Logs  []*NotificationLog `json:"logs"`
	Total int                `json:"total"`
}

// StatsSummary aggregates delivery totals across all batches in range.
type StatsSummary struct {
	TotalBatches    int     `json:"total_batches"`
	TotalRecipients int     `json:"total_recipients"`
	TotalSuccessful int     `json:"total_successful"`
	TotalFailed     int     `json:"total_failed"`
	SuccessRate     float64 `json:"success_rate"`
	TotalCost       string  `json:"total_cost"`
}

// StatsBucket aggregates per type or per channel.
type StatsBucket struct {
	Batches    int    `json:"batches"`
	Recipients int    `json:"recipients"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Cost       string `json:"cost,omitempty"`
}

// StatsReport is the stats endpoint payload.
type StatsReport struct {
	Summary   StatsSummary            `json:"summary"`
	ByType    map[string]*StatsBucket `json:"by_type"`
	ByChannel map[string]*StatsBucket `json:"by_channel"`
}
