// Package provider resolves configured carrier adapters through a registry.
// Adding a carrier means registering a builder, not editing a conditional
// chain.
package provider

import (
	"context"
	"sort"
	"strings"

	"outreach/internal/common"
	"outreach/internal/config"
	"outreach/internal/domain/notification"
	"outreach/internal/infra/email"
	"outreach/internal/infra/sms"
	"outreach/internal/infra/whatsapp"
)

var _ notification.ProviderFactory = (*Factory)(nil)

type smsBuilder func(cfg *config.Config) (notification.SMSProvider, error)
type whatsappBuilder func(cfg *config.Config) (notification.WhatsAppProvider, error)
type emailBuilder func(cfg *config.Config) (notification.EmailProvider, error)

var smsRegistry = map[string]smsBuilder{
	"termii": buildTermiiSMS,
	"twilio": buildTwilioSMS,
}

var whatsappRegistry = map[string]whatsappBuilder{
	"termii": buildTermiiWhatsApp,
	"twilio": buildTwilioWhatsApp,
}

var emailRegistry = map[string]emailBuilder{
	"aws_ses": buildSESEmail,
	"termii":  buildTermiiEmail,
}

// Factory builds carrier adapters from process configuration. Construction
// fails fast with a ConfigError naming the missing credential or the
// unrecognized carrier; nothing is ever silently defaulted.
type Factory struct {
	cfg *config.Config
}

// NewFactory creates a provider factory over the given configuration.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// SMS returns the configured SMS adapter.
func (f *Factory) SMS() (notification.SMSProvider, error) {
	name := strings.ToLower(f.cfg.Providers.SMS)
	build, ok := smsRegistry[name]
	if !ok {
		return nil, common.NewConfigError("unsupported sms carrier '%s', registered: %s", name, registeredNames(smsRegistry))
	}
	return build(f.cfg)
}

// WhatsApp returns the configured WhatsApp adapter.
func (f *Factory) WhatsApp() (notification.WhatsAppProvider, error) {
	name := strings.ToLower(f.cfg.Providers.WhatsApp)
	build, ok := whatsappRegistry[name]
	if !ok {
		return nil, common.NewConfigError("unsupported whatsapp carrier '%s', registered: %s", name, registeredNames(whatsappRegistry))
	}
	return build(f.cfg)
}

// Email returns the configured email adapter.
func (f *Factory) Email() (notification.EmailProvider, error) {
	name := strings.ToLower(f.cfg.Providers.Email)
	build, ok := emailRegistry[name]
	if !ok {
		return nil, common.NewConfigError("unsupported email carrier '%s', registered: %s", name, registeredNames(emailRegistry))
	}
	return build(f.cfg)
}

func buildTermiiSMS(cfg *config.Config) (notification.SMSProvider, error) {
	if cfg.Termii.APIKey == "" {
		return nil, common.NewConfigError("termii sms carrier selected but TERMII_API_KEY is not set")
	}
	return sms.NewTermiiProvider(cfg.Termii.APIKey, cfg.Termii.SenderID), nil
}

func buildTwilioSMS(cfg *config.Config) (notification.SMSProvider, error) {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		return nil, common.NewConfigError("twilio sms carrier selected but TWILIO_ACCOUNT_SID or TWILIO_AUTH_TOKEN is not set")
	}
	return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber), nil
}

func buildTermiiWhatsApp(cfg *config.Config) (notification.WhatsAppProvider, error) {
	if cfg.Termii.APIKey == "" {
		return nil, common.NewConfigError("termii whatsapp carrier selected but TERMII_API_KEY is not set")
	}
	return whatsapp.NewTermiiProvider(cfg.Termii.APIKey, cfg.Termii.SenderID), nil
}

func buildTwilioWhatsApp(cfg *config.Config) (notification.WhatsAppProvider, error) {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		return nil, common.NewConfigError("twilio whatsapp carrier selected but TWILIO_ACCOUNT_SID or TWILIO_AUTH_TOKEN is not set")
	}
	return whatsapp.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber), nil
}

func buildSESEmail(cfg *config.Config) (notification.EmailProvider, error) {
	if cfg.AWS.AccessKey == "" || cfg.AWS.SecretKey == "" {
		return nil, common.NewConfigError("aws_ses email carrier selected but AWS_ACCESS_KEY or AWS_SECRET_KEY is not set")
	}
	return email.NewSESProvider(context.Background(), cfg.AWS.AccessKey, cfg.AWS.SecretKey, cfg.AWS.Region, cfg.AWS.FromEmail)
}

func buildTermiiEmail(cfg *config.Config) (notification.EmailProvider, error) {
	if cfg.Termii.APIKey == "" {
		return nil, common.NewConfigError("termii email carrier selected but TERMII_API_KEY is not set")
	}
	return email.NewTermiiProvider(cfg.Termii.APIKey, cfg.Termii.EmailConfigurationID), nil
}

// registeredNames lists a registry's carrier names for error messages.
func registeredNames[B any](registry map[string]B) string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
