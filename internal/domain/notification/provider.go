package notification

import "context"

// SMSOptions carries carrier routing options for SMS sends.
type SMSOptions struct {
	Route       string // generic, dnd, or voice
	MessageType string // plain or unicode
}

// SMSProvider is the uniform contract over an SMS carrier. Implementations
// live in infra/sms/. Send never returns an error: delivery failures of any
// kind are absorbed into the outcome so partial failure stays a first-class
// state. Carrier recipient caps are handled internally — callers always pass
// the full recipient list.
type SMSProvider interface {
	Name() string
	SendSMS(ctx context.Context, to []string, message string, opts SMSOptions) DeliveryOutcome
}

// WhatsAppProvider is the uniform contract over a WhatsApp carrier.
// Implementations live in infra/whatsapp/.
type WhatsAppProvider interface {
	Name() string
	SendWhatsApp(ctx context.Context, to []string, message string, media *Media) DeliveryOutcome
}

// EmailProvider is the uniform contract over an email carrier.
// Implementations live in infra/email/.
type EmailProvider interface {
	Name() string
	SendEmail(ctx context.Context, to []string, subject, body, htmlBody string) DeliveryOutcome
}

// ProviderFactory resolves the configured adapter for each channel. A factory
// call fails with a ConfigError when required credentials are absent or the
// configured carrier name is not registered. The service re-attempts on the
// next request rather than caching the failure, in case configuration was
// fixed in between.
type ProviderFactory interface {
	SMS() (SMSProvider, error)
	WhatsApp() (WhatsAppProvider, error)
	Email() (EmailProvider, error)
}
