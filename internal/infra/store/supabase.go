package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"outreach/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const logTable = "notification_logs"

var _ notification.LogStore = (*SupabaseLogStore)(nil)

// SupabaseLogStore implements LogStore using the Supabase Go SDK.
type SupabaseLogStore struct {
	client *supa.Client
}

// NewSupabaseLogStore creates a new Supabase-backed notification log store.
func NewSupabaseLogStore(supabaseURL, serviceKey string) (*SupabaseLogStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseLogStore{client: client}, nil
}

// logRow is the internal representation for Supabase PostgREST insert/select.
// recipient_sample and metadata are JSON text columns, serialized here at the
// store boundary.
type logRow struct {
	ID              int64   `json:"id,omitempty"`
	BatchID         string  `json:"batch_id"`
	Type            string  `json:"type"`
	Channel         *string `json:"channel,omitempty"`
	Subject         *string `json:"subject,omitempty"`
	Message         string  `json:"message"`
	TotalRecipients int     `json:"total_recipients"`
	RecipientSample *string `json:"recipient_sample,omitempty"`
	Status          string  `json:"status"`
	SuccessfulCount int     `json:"successful_count"`
	FailedCount     int     `json:"failed_count"`
	Provider        string  `json:"provider"`
	ProviderMsgID   *string `json:"provider_message_id,omitempty"`
	ProviderResp    *string `json:"provider_response,omitempty"`
	TotalCost       string  `json:"total_cost"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	Metadata        *string `json:"metadata,omitempty"`
	CreatedBy       *string `json:"created_by,omitempty"`
	CreatedByEmail  *string `json:"created_by_email,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	SentAt          *string `json:"sent_at,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
}

// Create inserts one audit row for a completed batch.
func (s *SupabaseLogStore) Create(ctx context.Context, log *notification.NotificationLog) error {
	row, err := logToRow(log)
	if err != nil {
		return err
	}

	// Insert and get the created row back
	var results []logRow
	data, _, err := s.client.From(logTable).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification log: %w", err)
	}

	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		log.ID = results[0].ID
		if results[0].CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
				log.CreatedAt = t
			}
		}
	}

	return nil
}

// GetByBatchID retrieves a log row by its batch identifier.
// Returns nil, nil if no row exists.
func (s *SupabaseLogStore) GetByBatchID(ctx context.Context, batchID string) (*notification.NotificationLog, error) {
	data, _, err := s.client.From(logTable).Select("*", "exact", false).Eq("batch_id", batchID).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification log: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification log: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rowToLog(&rows[0]), nil
}

// List retrieves log rows with pagination and filtering, newest first.
func (s *SupabaseLogStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.NotificationLog, int, error) {
	filter.Normalize()

	query := s.client.From(logTable).Select("*", "exact", false)

	// Apply filters
	if filter.Type != "" {
		query = query.Eq("type", filter.Type)
	}
	if filter.Channel != "" {
		query = query.Eq("channel", filter.Channel)
	}
	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	if filter.StartDate != nil {
		query = query.Gte("created_at", filter.StartDate.UTC().Format(time.RFC3339Nano))
	}
	if filter.EndDate != nil {
		query = query.Lte("created_at", filter.EndDate.UTC().Format(time.RFC3339Nano))
	}

	// Order by created_at desc, paginate
	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(filter.Offset, filter.Offset+filter.Limit-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notification logs: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing notification list: %w", err)
	}

	logs := make([]*notification.NotificationLog, len(rows))
	for i := range rows {
		logs[i] = rowToLog(&rows[i])
	}

	return logs, int(count), nil
}

// ListRange retrieves all rows in the date range for stats aggregation.
func (s *SupabaseLogStore) ListRange(ctx context.Context, start, end *time.Time) ([]*notification.NotificationLog, error) {
	query := s.client.From(logTable).Select("*", "exact", false)

	if start != nil {
		query = query.Gte("created_at", start.UTC().Format(time.RFC3339Nano))
	}
	if end != nil {
		query = query.Lte("created_at", end.UTC().Format(time.RFC3339Nano))
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: true})

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing notification range: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification range: %w", err)
	}

	logs := make([]*notification.NotificationLog, len(rows))
	for i := range rows {
		logs[i] = rowToLog(&rows[i])
	}

	return logs, nil
}

// DeleteOlderThan removes audit rows created before the cutoff.
func (s *SupabaseLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	threshold := cutoff.UTC().Format(time.RFC3339Nano)

	_, count, err := s.client.From(logTable).
		Delete("", "exact").
		Lt("created_at", threshold).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("deleting expired notification logs: %w", err)
	}

	return int(count), nil
}

// logToRow converts a NotificationLog to its PostgREST representation.
func logToRow(log *notification.NotificationLog) (*logRow, error) {
	row := &logRow{
		BatchID:         log.BatchID,
		Type:            string(log.Type),
		Message:         log.Message,
		TotalRecipients: log.TotalRecipients,
		Status:          string(log.Status),
		SuccessfulCount: log.SuccessfulCount,
		FailedCount:     log.FailedCount,
		Provider:        log.Provider,
		TotalCost:       log.TotalCost,
	}

	setOptional(&row.Channel, log.ChannelRoute)
	setOptional(&row.Subject, log.Subject)
	setOptional(&row.ProviderMsgID, log.ProviderMsgID)
	setOptional(&row.ProviderResp, log.ProviderResp)
	setOptional(&row.ErrorMessage, log.ErrorMessage)
	setOptional(&row.CreatedBy, log.CreatedBy)
	setOptional(&row.CreatedByEmail, log.CreatedByEmail)

	if len(log.RecipientSample) > 0 {
		encoded, err := json.Marshal(log.RecipientSample)
		if err != nil {
			return nil, fmt.Errorf("encoding recipient sample: %w", err)
		}
		sample := string(encoded)
		row.RecipientSample = &sample
	}
	if len(log.Metadata) > 0 {
		encoded, err := json.Marshal(log.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		meta := string(encoded)
		row.Metadata = &meta
	}

	if log.SentAt != nil {
		ts := log.SentAt.UTC().Format(time.RFC3339Nano)
		row.SentAt = &ts
	}
	if log.CompletedAt != nil {
		ts := log.CompletedAt.UTC().Format(time.RFC3339Nano)
		row.CompletedAt = &ts
	}

	return row, nil
}

// rowToLog converts a logRow to a NotificationLog.
func rowToLog(row *logRow) *notification.NotificationLog {
	log := &notification.NotificationLog{
		ID:              row.ID,
		BatchID:         row.BatchID,
		Type:            notification.Channel(row.Type),
		Message:         row.Message,
		TotalRecipients: row.TotalRecipients,
		Status:          notification.BatchStatus(row.Status),
		SuccessfulCount: row.SuccessfulCount,
		FailedCount:     row.FailedCount,
		Provider:        row.Provider,
		TotalCost:       row.TotalCost,
	}

	if row.Channel != nil {
		log.ChannelRoute = *row.Channel
	}
	if row.Subject != nil {
		log.Subject = *row.Subject
	}
	if row.ProviderMsgID != nil {
		log.ProviderMsgID = *row.ProviderMsgID
	}
	if row.ProviderResp != nil {
		log.ProviderResp = *row.ProviderResp
	}
	if row.ErrorMessage != nil {
		log.ErrorMessage = *row.ErrorMessage
	}
	if row.CreatedBy != nil {
		log.CreatedBy = *row.CreatedBy
	}
	if row.CreatedByEmail != nil {
		log.CreatedByEmail = *row.CreatedByEmail
	}

	if row.RecipientSample != nil && *row.RecipientSample != "" {
		// tolerate malformed legacy values rather than failing the read
		_ = json.Unmarshal([]byte(*row.RecipientSample), &log.RecipientSample)
	}
	if row.Metadata != nil && *row.Metadata != "" {
		_ = json.Unmarshal([]byte(*row.Metadata), &log.Metadata)
	}

	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			log.CreatedAt = t
		}
	}
	if row.SentAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.SentAt); err == nil {
			log.SentAt = &t
		}
	}
	if row.CompletedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.CompletedAt); err == nil {
			log.CompletedAt = &t
		}
	}

	return log
}

func setOptional(dst **string, value string) {
	if value != "" {
		*dst = &value
	}
}
