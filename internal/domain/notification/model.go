package notification

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Termii SMS routes. "generic" is promotional traffic, "dnd" bypasses
// do-not-disturb filtering for transactional messages, "voice" reads the
// message out as a call.
const (
	RouteGeneric = "generic"
	RouteDND     = "dnd"
	RouteVoice   = "voice"
)

// Actor is the authenticated principal triggering a send. Identity
// validation happens upstream; the service only records attribution.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Media describes an attachment for WhatsApp messages.
type Media struct {
	URL     string `json:"url" binding:"required"`
	Caption string `json:"caption"`
}

// SMSRequest is the API payload for sending SMS to one or more recipients.
type SMSRequest struct {
	To          []string `json:"to" binding:"required,min=1"`
	Message     string   `json:"message" binding:"required"`
	Channel     string   `json:"channel" binding:"omitempty,oneof=generic dnd voice"`
	MessageType string   `json:"message_type" binding:"omitempty,oneof=plain unicode"`
	Queue       bool     `json:"queue"`
}

// WhatsAppRequest is the API payload for sending WhatsApp messages.
type WhatsAppRequest struct {
	To      []string `json:"to" binding:"required,min=1"`
	Message string   `json:"message"`
	Media   *Media   `json:"media"`
	Queue   bool     `json:"queue"`
}

// EmailRequest is the API payload for sending email.
type EmailRequest struct {
	To       []string `json:"to" binding:"required,min=1,dive,email"`
	Subject  string   `json:"subject" binding:"required"`
	Body     string   `json:"body" binding:"required"`
	HTMLBody string   `json:"html_body"`
	Queue    bool     `json:"queue"`
}

// TemplateSendRequest is the API payload for a templated send. Each recipient
// entry carries an "email" or "phone" address plus per-recipient variables;
// common variables apply to every recipient unless overridden.
type TemplateSendRequest struct {
	TemplateName    string              `json:"template_name" binding:"required"`
	Recipients      []map[string]string `json:"recipients" binding:"required,min=1"`
	CommonVariables map[string]string   `json:"common_variables"`
	Queue           bool                `json:"queue"`
}

// BatchResult is the bounded summary returned to the caller after a send.
// Per-recipient detail is never included; the batch log lookup is the audit
// surface for that.
type BatchResult struct {
	Status          BatchStatus `json:"status"`
	BatchID         string      `json:"batch_id"`
	TotalRecipients int         `json:"total_recipients"`
	SuccessfulCount int         `json:"successful_count"`
	FailedCount     int         `json:"failed_count"`
	TotalCost       string      `json:"total_cost"`
	Provider        string      `json:"provider"`
	MessageID       string      `json:"message_id,omitempty"`
	Message         string      `json:"message"`
}
