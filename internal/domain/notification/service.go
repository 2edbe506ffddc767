package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"outreach/internal/common"
	"outreach/internal/render"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxConcurrentSends caps simultaneous in-flight carrier calls during
// per-recipient template fan-out.
const maxConcurrentSends = 50

// OrgInfo holds the organization identity injected into every templated
// send as standard variables.
type OrgInfo struct {
	Name               string
	SupportEmail       string
	SupportPhone       string
	CommunityGroupLink string
}

// Enqueuer defines the contract for queuing a batch for asynchronous
// dispatch by the worker process.
type Enqueuer interface {
	EnqueueDispatch(payload *DispatchPayload) error
}

// Service is the orchestration core: it fans a logical send request out
// through the channel adapter, aggregates the merged outcome, and persists
// exactly one audit row per batch. Providers are resolved lazily on first use
// and cached for the service's lifetime; a failed resolution is re-attempted
// on the next request in case configuration was fixed.
type Service struct {
	store     LogStore
	factory   ProviderFactory
	templates TemplateSource  // nil disables templated sends
	directory Directory       // nil disables personalization/attribution lookups
	limiter   SendRateLimiter // nil disables actor rate limiting
	enqueuer  Enqueuer        // nil disables the queued dispatch path
	org       OrgInfo

	mu       sync.Mutex
	sms      SMSProvider
	whatsapp WhatsAppProvider
	email    EmailProvider
}

// NewService creates a new notification service. templates, directory,
// limiter, and enqueuer may be nil; the corresponding behavior is skipped.
func NewService(
	store LogStore,
	factory ProviderFactory,
	templates TemplateSource,
	directory Directory,
	limiter SendRateLimiter,
	enqueuer Enqueuer,
	org OrgInfo,
) *Service {
	return &Service{
		store:     store,
		factory:   factory,
		templates: templates,
		directory: directory,
		limiter:   limiter,
		enqueuer:  enqueuer,
		org:       org,
	}
}

// SendSMS dispatches an SMS batch, or queues it when requested.
func (s *Service) SendSMS(ctx context.Context, actor Actor, req *SMSRequest) (*BatchResult, error) {
	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()

	if req.Queue && s.enqueuer != nil {
		return s.queue(batchID, len(req.To), &DispatchPayload{
			BatchID: batchID, Actor: actor, Kind: KindSMS, SMS: req,
		})
	}
	return s.DispatchSMS(ctx, actor, batchID, req)
}

// DispatchSMS performs the carrier call for an SMS batch and records the
// audit row. Called directly for synchronous sends and by the worker for
// queued ones.
func (s *Service) DispatchSMS(ctx context.Context, actor Actor, batchID string, req *SMSRequest) (*BatchResult, error) {
	provider, err := s.smsProvider()
	if err != nil {
		return nil, err
	}

	opts := SMSOptions{
		Route:       valueOr(req.Channel, RouteGeneric),
		MessageType: valueOr(req.MessageType, "plain"),
	}

	outcome := guardedSend(provider.Name(), len(req.To), func() DeliveryOutcome {
		return provider.SendSMS(ctx, req.To, req.Message, opts)
	})

	return s.record(ctx, actor, batchRecord{
		batchID:    batchID,
		channel:    ChannelSMS,
		route:      opts.Route,
		message:    req.Message,
		recipients: req.To,
		provider:   provider.Name(),
		outcome:    outcome,
	})
}

// SendWhatsApp dispatches a WhatsApp batch, or queues it when requested.
func (s *Service) SendWhatsApp(ctx context.Context, actor Actor, req *WhatsAppRequest) (*BatchResult, error) {
	if req.Message == "" && req.Media == nil {
		return nil, common.NewValidationError("either message or media is required")
	}
	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()

	if req.Queue && s.enqueuer != nil {
		return s.queue(batchID, len(req.To), &DispatchPayload{
			BatchID: batchID, Actor: actor, Kind: KindWhatsApp, WhatsApp: req,
		})
	}
	return s.DispatchWhatsApp(ctx, actor, batchID, req)
}

// DispatchWhatsApp performs the carrier call for a WhatsApp batch and
// records the audit row.
func (s *Service) DispatchWhatsApp(ctx context.Context, actor Actor, batchID string, req *WhatsAppRequest) (*BatchResult, error) {
	provider, err := s.whatsappProvider()
	if err != nil {
		return nil, err
	}

	outcome := guardedSend(provider.Name(), len(req.To), func() DeliveryOutcome {
		return provider.SendWhatsApp(ctx, req.To, req.Message, req.Media)
	})

	rec := batchRecord{
		batchID:    batchID,
		channel:    ChannelWhatsApp,
		route:      "whatsapp",
		message:    req.Message,
		recipients: req.To,
		provider:   provider.Name(),
		outcome:    outcome,
	}
	if req.Media != nil {
		rec.metadata = map[string]string{"media_url": req.Media.URL, "media_caption": req.Media.Caption}
	}
	return s.record(ctx, actor, rec)
}

// SendEmail dispatches an email batch, or queues it when requested.
func (s *Service) SendEmail(ctx context.Context, actor Actor, req *EmailRequest) (*BatchResult, error) {
	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()

	if req.Queue && s.enqueuer != nil {
		return s.queue(batchID, len(req.To), &DispatchPayload{
			BatchID: batchID, Actor: actor, Kind: KindEmail, Email: req,
		})
	}
	return s.DispatchEmail(ctx, actor, batchID, req)
}

// DispatchEmail performs the carrier call for an email batch and records the
// audit row.
func (s *Service) DispatchEmail(ctx context.Context, actor Actor, batchID string, req *EmailRequest) (*BatchResult, error) {
	provider, err := s.emailProvider()
	if err != nil {
		return nil, err
	}

	outcome := guardedSend(provider.Name(), len(req.To), func() DeliveryOutcome {
		return provider.SendEmail(ctx, req.To, req.Subject, req.Body, req.HTMLBody)
	})

	return s.record(ctx, actor, batchRecord{
		batchID:    batchID,
		channel:    ChannelEmail,
		subject:    req.Subject,
		message:    req.Body,
		recipients: req.To,
		provider:   provider.Name(),
		outcome:    outcome,
	})
}

// SendWithTemplate renders the named template per recipient and fans out on
// the template's channel. Rendered content differs per recipient, so this
// path is per-recipient rather than one bulk carrier call; concurrency is
// capped at maxConcurrentSends.
func (s *Service) SendWithTemplate(ctx context.Context, actor Actor, req *TemplateSendRequest) (*BatchResult, error) {
	if s.templates == nil {
		return nil, common.NewValidationError("templated sends are not configured")
	}
	if err := s.checkRate(ctx, actor); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()

	if req.Queue && s.enqueuer != nil {
		return s.queue(batchID, len(req.Recipients), &DispatchPayload{
			BatchID: batchID, Actor: actor, Kind: KindTemplate, Template: req,
		})
	}
	return s.DispatchTemplate(ctx, actor, batchID, req)
}

// DispatchTemplate performs the per-recipient templated fan-out and records
// the audit row. Template resolution happens before any carrier call, so an
// unknown or inactive template leaves no partial state.
func (s *Service) DispatchTemplate(ctx context.Context, actor Actor, batchID string, req *TemplateSendRequest) (*BatchResult, error) {
	tpl, err := s.templates.GetActiveByName(ctx, req.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	if tpl == nil {
		return nil, common.NewNotFoundError("template", req.TemplateName)
	}

	channel := Channel(tpl.Type)
	providerName, send, err := s.templateSender(channel)
	if err != nil {
		return nil, err
	}

	base := s.standardVariables()
	base["header_image"] = tpl.HeaderImage
	for k, v := range req.CommonVariables {
		base[k] = v
	}

	outcomes := make([]DeliveryOutcome, len(req.Recipients))
	sem := make(chan struct{}, maxConcurrentSends)
	var wg sync.WaitGroup
	for i, recipientData := range req.Recipients {
		wg.Add(1)
		go func(i int, data map[string]string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = s.sendRendered(ctx, providerName, send, tpl.Subject, tpl.Body, tpl.HTMLBody, base, data)
		}(i, recipientData)
	}
	wg.Wait()

	merged := MergeOutcomes(providerName, outcomes)

	addresses := make([]string, 0, len(req.Recipients))
	for _, data := range req.Recipients {
		if addr := recipientAddress(data); addr != "" {
			addresses = append(addresses, addr)
		}
	}

	return s.record(ctx, actor, batchRecord{
		batchID:    batchID,
		channel:    channel,
		route:      "template:" + tpl.Name,
		subject:    tpl.Subject,
		message:    tpl.Body,
		recipients: addresses,
		total:      len(req.Recipients),
		provider:   providerName,
		outcome:    merged,
		metadata:   map[string]string{"template_name": tpl.Name},
	})
}

// templateSender returns the provider name and a single-recipient send
// function for the given channel.
func (s *Service) templateSender(channel Channel) (string, func(ctx context.Context, to, subject, body, htmlBody string) DeliveryOutcome, error) {
	switch channel {
	case ChannelSMS:
		p, err := s.smsProvider()
		if err != nil {
			return "", nil, err
		}
		return p.Name(), func(ctx context.Context, to, _, body, _ string) DeliveryOutcome {
			return p.SendSMS(ctx, []string{to}, body, SMSOptions{Route: RouteGeneric, MessageType: "plain"})
		}, nil
	case ChannelWhatsApp:
		p, err := s.whatsappProvider()
		if err != nil {
			return "", nil, err
		}
		return p.Name(), func(ctx context.Context, to, _, body, _ string) DeliveryOutcome {
			return p.SendWhatsApp(ctx, []string{to}, body, nil)
		}, nil
	case ChannelEmail:
		p, err := s.emailProvider()
		if err != nil {
			return "", nil, err
		}
		return p.Name(), func(ctx context.Context, to, subject, body, htmlBody string) DeliveryOutcome {
			return p.SendEmail(ctx, []string{to}, subject, body, htmlBody)
		}, nil
	default:
		return "", nil, common.NewValidationError(fmt.Sprintf("unknown template channel: %s", channel))
	}
}

// sendRendered renders and delivers the template for one recipient.
func (s *Service) sendRendered(
	ctx context.Context,
	providerName string,
	send func(ctx context.Context, to, subject, body, htmlBody string) DeliveryOutcome,
	subject, body, htmlBody string,
	base, recipientData map[string]string,
) DeliveryOutcome {
	address := recipientAddress(recipientData)
	if address == "" {
		return FailedOutcome(providerName, "", "recipient has no email or phone", 1)
	}

	variables := make(map[string]string, len(base)+len(recipientData)+1)
	for k, v := range base {
		variables[k] = v
	}
	for k, v := range recipientData {
		variables[k] = v
	}

	// Best-effort personalization from the programme's person directory when
	// the caller did not supply a name.
	if _, ok := variables["name"]; !ok && s.directory != nil {
		if email, hasEmail := recipientData["email"]; hasEmail {
			if name, err := s.directory.DisplayName(ctx, email); err == nil && name != "" {
				variables["name"] = name
			}
		}
	}

	renderedSubject := render.Render(subject, variables)
	renderedBody := render.Render(body, variables)
	renderedHTML := render.Render(htmlBody, variables)

	return guardedSend(providerName, 1, func() DeliveryOutcome {
		return send(ctx, address, renderedSubject, renderedBody, renderedHTML)
	})
}

// GetBatch retrieves the audit row for a batch.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*NotificationLog, error) {
	log, err := s.store.GetByBatchID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("fetching batch log: %w", err)
	}
	if log == nil {
		return nil, common.NewNotFoundError("notification batch", batchID)
	}
	return log, nil
}

// ListLogs retrieves audit rows with pagination and filtering.
func (s *Service) ListLogs(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	filter.Normalize()
	logs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing batch logs: %w", err)
	}
	return &ListResponse{Logs: logs, Total: total}, nil
}

// Stats aggregates delivery statistics over the date range by scanning the
// filtered rows in memory. Row granularity is one per batch, so the scan
// stays small even at high recipient counts.
func (s *Service) Stats(ctx context.Context, start, end *time.Time) (*StatsReport, error) {
	logs, err := s.store.ListRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading logs for stats: %w", err)
	}

	report := &StatsReport{
		ByType:    make(map[string]*StatsBucket),
		ByChannel: make(map[string]*StatsBucket),
	}

	totalCost := decimal.Zero
	typeCosts := make(map[string]decimal.Decimal)
	for _, log := range logs {
		report.Summary.TotalBatches++
		report.Summary.TotalRecipients += log.TotalRecipients
		report.Summary.TotalSuccessful += log.SuccessfulCount
		report.Summary.TotalFailed += log.FailedCount

		cost := decimal.Zero
		if c, err := decimal.NewFromString(log.TotalCost); err == nil {
			cost = c
		}
		totalCost = totalCost.Add(cost)

		typ := string(log.Type)
		bucket, ok := report.ByType[typ]
		if !ok {
			bucket = &StatsBucket{}
			report.ByType[typ] = bucket
		}
		bucket.Batches++
		bucket.Recipients += log.TotalRecipients
		bucket.Successful += log.SuccessfulCount
		bucket.Failed += log.FailedCount
		typeCosts[typ] = typeCosts[typ].Add(cost)

		if log.ChannelRoute != "" {
			cb, ok := report.ByChannel[log.ChannelRoute]
			if !ok {
				cb = &StatsBucket{}
				report.ByChannel[log.ChannelRoute] = cb
			}
			cb.Batches++
			cb.Recipients += log.TotalRecipients
			cb.Successful += log.SuccessfulCount
			cb.Failed += log.FailedCount
		}
	}

	for typ, bucket := range report.ByType {
		bucket.Cost = typeCosts[typ].StringFixed(2)
	}
	report.Summary.TotalCost = totalCost.StringFixed(2)
	if report.Summary.TotalRecipients > 0 {
		rate := float64(report.Summary.TotalSuccessful) / float64(report.Summary.TotalRecipients) * 100
		report.Summary.SuccessRate = float64(int(rate*100+0.5)) / 100
	}
	return report, nil
}

// batchRecord carries everything record needs to persist one audit row.
type batchRecord struct {
	batchID    string
	channel    Channel
	route      string
	subject    string
	message    string
	recipients []string
	total      int // overrides len(recipients) when set (templated sends may skip addressless entries)
	provider   string
	outcome    DeliveryOutcome
	metadata   map[string]string
}

// record persists exactly one audit row for the batch and builds the bounded
// caller summary. A store failure propagates so the HTTP layer surfaces a
// server error; the carrier call has already happened by then and is not
// compensated (accepted gap — no two-phase commit with the carrier).
func (s *Service) record(ctx context.Context, actor Actor, rec batchRecord) (*BatchResult, error) {
	total := rec.total
	if total == 0 {
		total = len(rec.recipients)
	}
	outcome := normalizeCounters(rec.outcome, total)
	status := batchStatusFor(outcome.SuccessfulCount, outcome.FailedCount)

	now := time.Now().UTC()
	logRow := &NotificationLog{
		BatchID:         rec.batchID,
		Type:            rec.channel,
		ChannelRoute:    rec.route,
		Subject:         rec.subject,
		Message:         rec.message,
		TotalRecipients: total,
		RecipientSample: sampleRecipients(rec.recipients),
		Status:          status,
		SuccessfulCount: outcome.SuccessfulCount,
		FailedCount:     outcome.FailedCount,
		Provider:        rec.provider,
		ProviderMsgID:   outcome.MessageID,
		ProviderResp:    boundResponse(outcome.ProviderResponse),
		TotalCost:       outcome.Cost,
		ErrorMessage:    outcome.Error,
		Metadata:        rec.metadata,
		CreatedBy:       actor.ID,
		CreatedByEmail:  s.actorEmail(ctx, actor),
		SentAt:          outcome.SentAt,
		CompletedAt:     &now,
	}

	if err := s.store.Create(ctx, logRow); err != nil {
		slog.Error("batch log write failed",
			"batch_id", rec.batchID,
			"type", rec.channel,
			"status", status,
			"error", err,
		)
		return nil, fmt.Errorf("persisting batch log: %w", err)
	}

	slog.Info("batch dispatched",
		"batch_id", rec.batchID,
		"type", rec.channel,
		"channel", rec.route,
		"provider", rec.provider,
		"status", status,
		"total", total,
		"successful", outcome.SuccessfulCount,
		"failed", outcome.FailedCount,
		"cost", outcome.Cost,
	)

	return &BatchResult{
		Status:          status,
		BatchID:         rec.batchID,
		TotalRecipients: total,
		SuccessfulCount: outcome.SuccessfulCount,
		FailedCount:     outcome.FailedCount,
		TotalCost:       outcome.Cost,
		Provider:        rec.provider,
		MessageID:       outcome.MessageID,
		Message:         statusMessage(status, outcome.SuccessfulCount, total),
	}, nil
}

// normalizeCounters enforces successful+failed == total on the merged
// outcome. Adapters maintain this themselves; the guard covers outcomes built
// from unexpected failure paths.
func normalizeCounters(o DeliveryOutcome, total int) DeliveryOutcome {
	if o.SuccessfulCount+o.FailedCount != total {
		if o.SuccessfulCount > total {
			o.SuccessfulCount = total
		}
		o.FailedCount = total - o.SuccessfulCount
	}
	o.TotalRecipients = total
	return o
}

func statusMessage(status BatchStatus, successful, total int) string {
	switch status {
	case StatusSent:
		return fmt.Sprintf("delivered to all %d recipient(s)", total)
	case StatusPartial:
		return fmt.Sprintf("delivered to %d of %d recipient(s)", successful, total)
	case StatusPending:
		return "batch queued for dispatch"
	default:
		return fmt.Sprintf("delivery failed for all %d recipient(s)", total)
	}
}

// queue enqueues the payload for the worker and returns a pending summary.
func (s *Service) queue(batchID string, recipients int, payload *DispatchPayload) (*BatchResult, error) {
	if err := s.enqueuer.EnqueueDispatch(payload); err != nil {
		return nil, fmt.Errorf("queuing batch: %w", err)
	}
	slog.Info("batch queued", "batch_id", batchID, "kind", payload.Kind, "recipients", recipients)
	return &BatchResult{
		Status:          StatusPending,
		BatchID:         batchID,
		TotalRecipients: recipients,
		TotalCost:       "0",
		Message:         statusMessage(StatusPending, 0, recipients),
	}, nil
}

// checkRate applies the per-actor dispatch cap. Limiter outages fail open so
// a redis incident never blocks sends.
func (s *Service) checkRate(ctx context.Context, actor Actor) error {
	if s.limiter == nil {
		return nil
	}
	key := actor.Email
	if key == "" {
		key = actor.ID
	}
	if key == "" {
		key = "anonymous"
	}
	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		slog.Error("rate limit check failed, proceeding without limit", "actor", key, "error", err)
		return nil
	}
	if !allowed {
		return common.NewRateLimitError(fmt.Sprintf("send rate limit exceeded for %s", key))
	}
	return nil
}

// actorEmail resolves the acting user's email for attribution. Best-effort: a
// missing user never fails the send.
func (s *Service) actorEmail(ctx context.Context, actor Actor) string {
	if actor.Email != "" {
		return actor.Email
	}
	if actor.ID == "" || s.directory == nil {
		return ""
	}
	email, err := s.directory.UserEmail(ctx, actor.ID)
	if err != nil {
		slog.Warn("actor email lookup failed", "actor_id", actor.ID, "error", err)
		return ""
	}
	return email
}

// standardVariables builds the always-available template variables.
func (s *Service) standardVariables() map[string]string {
	now := time.Now()
	return map[string]string{
		"current_date":         now.Format("January 02, 2006"),
		"current_year":         now.Format("2006"),
		"organization_name":    s.org.Name,
		"support_email":        s.org.SupportEmail,
		"support_phone":        s.org.SupportPhone,
		"community_group_link": s.org.CommunityGroupLink,
	}
}

// guardedSend runs an adapter call, converting a panic into a fully-failed
// outcome so the caller always receives a structured result.
func guardedSend(provider string, recipients int, call func() DeliveryOutcome) (outcome DeliveryOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked", "provider", provider, "panic", r)
			outcome = FailedOutcome(provider, BulkRecipient, fmt.Sprintf("internal send failure: %v", r), recipients)
		}
	}()
	return call()
}

// recipientAddress picks the deliverable address from a templated-send
// recipient entry.
func recipientAddress(data map[string]string) string {
	if email, ok := data["email"]; ok && email != "" {
		return email
	}
	if phone, ok := data["phone"]; ok && phone != "" {
		return phone
	}
	return ""
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Lazy provider resolution: cached on success only.

func (s *Service) smsProvider() (SMSProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sms == nil {
		p, err := s.factory.SMS()
		if err != nil {
			return nil, err
		}
		s.sms = p
	}
	return s.sms, nil
}

func (s *Service) whatsappProvider() (WhatsAppProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.whatsapp == nil {
		p, err := s.factory.WhatsApp()
		if err != nil {
			return nil, err
		}
		s.whatsapp = p
	}
	return s.whatsapp, nil
}

func (s *Service) emailProvider() (EmailProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.email == nil {
		p, err := s.factory.Email()
		if err != nil {
			return nil, err
		}
		s.email = p
	}
	return s.email, nil
}
