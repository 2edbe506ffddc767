package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatchBatch is the asynq task type for queued batch dispatch.
const TaskTypeDispatchBatch = "notification:dispatch"

// Dispatch kinds carried in the task payload.
const (
	KindSMS      = "sms"
	KindWhatsApp = "whatsapp"
	KindEmail    = "email"
	KindTemplate = "template"
)

// DispatchPayload is the serialized payload for a queued batch. It carries
// the full send request plus the pre-generated batch ID so the caller can
// poll the batch log; no database row exists until the worker finishes the
// dispatch.
type DispatchPayload struct {
	BatchID  string               `json:"batch_id"`
	Actor    Actor                `json:"actor"`
	Kind     string               `json:"kind"`
	SMS      *SMSRequest          `json:"sms,omitempty"`
	WhatsApp *WhatsAppRequest     `json:"whatsapp,omitempty"`
	Email    *EmailRequest        `json:"email,omitempty"`
	Template *TemplateSendRequest `json:"template,omitempty"`
}

// NewDispatchTask creates an asynq task for a queued batch.
func NewDispatchTask(payload *DispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling dispatch payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDispatchBatch, data), nil
}

// ParseDispatchPayload deserializes the task payload.
func ParseDispatchPayload(data []byte) (*DispatchPayload, error) {
	var p DispatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling dispatch payload: %w", err)
	}
	return &p, nil
}
