package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach/internal/common"
	tmpl "outreach/internal/domain/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeStore struct {
	created   []*NotificationLog
	createErr error
}

func (f *fakeStore) Create(ctx context.Context, log *NotificationLog) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, log)
	return nil
}

func (f *fakeStore) GetByBatchID(ctx context.Context, batchID string) (*NotificationLog, error) {
	for _, log := range f.created {
		if log.BatchID == batchID {
			return log, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(ctx context.Context, filter ListFilter) ([]*NotificationLog, int, error) {
	return f.created, len(f.created), nil
}

func (f *fakeStore) ListRange(ctx context.Context, start, end *time.Time) ([]*NotificationLog, error) {
	return f.created, nil
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type fakeSMSProvider struct {
	name    string
	outcome DeliveryOutcome
	calls   int
	lastTo  []string
}

func (f *fakeSMSProvider) Name() string { return f.name }

func (f *fakeSMSProvider) SendSMS(ctx context.Context, to []string, message string, opts SMSOptions) DeliveryOutcome {
	f.calls++
	f.lastTo = to
	o := f.outcome
	if o.TotalRecipients == 0 {
		o.TotalRecipients = len(to)
		o.SuccessfulCount = len(to)
		o.Success = true
		o.Status = OutcomeSent
	}
	return o
}

type fakeEmailProvider struct {
	name  string
	calls int
	sent  []string
}

func (f *fakeEmailProvider) Name() string { return f.name }

func (f *fakeEmailProvider) SendEmail(ctx context.Context, to []string, subject, body, htmlBody string) DeliveryOutcome {
	f.calls++
	f.sent = append(f.sent, body)
	return SentOutcome(f.name, to[0], "msg-"+to[0], "0.0001", "")
}

type fakeFactory struct {
	sms      SMSProvider
	email    EmailProvider
	smsErr   error
	smsCalls int
}

func (f *fakeFactory) SMS() (SMSProvider, error) {
	f.smsCalls++
	if f.smsErr != nil {
		return nil, f.smsErr
	}
	return f.sms, nil
}

func (f *fakeFactory) WhatsApp() (WhatsAppProvider, error) {
	return nil, common.NewConfigError("no whatsapp carrier in test")
}

func (f *fakeFactory) Email() (EmailProvider, error) {
	if f.email == nil {
		return nil, common.NewConfigError("no email carrier in test")
	}
	return f.email, nil
}

type fakeTemplates struct {
	templates map[string]*tmpl.Template
	calls     int
}

func (f *fakeTemplates) GetActiveByName(ctx context.Context, name string) (*tmpl.Template, error) {
	f.calls++
	return f.templates[name], nil
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(ctx context.Context, actorKey string) (bool, error) {
	f.keys = append(f.keys, actorKey)
	return f.allowed, f.err
}

type fakeEnqueuer struct {
	payloads []*DispatchPayload
}

func (f *fakeEnqueuer) EnqueueDispatch(payload *DispatchPayload) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeDirectory struct {
	names  map[string]string
	emails map[string]string
}

func (f *fakeDirectory) DisplayName(ctx context.Context, email string) (string, error) {
	return f.names[email], nil
}

func (f *fakeDirectory) UserEmail(ctx context.Context, userID string) (string, error) {
	return f.emails[userID], nil
}

// --- tests ---

func TestSendSMSPartialBatch(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeSMSProvider{
		name: "termii",
		outcome: DeliveryOutcome{
			Recipient:       BulkRecipient,
			MessageID:       "msg-1,msg-2",
			Status:          OutcomeFailed,
			Error:           "request timeout",
			Cost:            "0.45",
			TotalRecipients: 190,
			SuccessfulCount: 150,
			FailedCount:     40,
		},
	}
	svc := NewService(store, &fakeFactory{sms: provider}, nil, nil, nil, nil, OrgInfo{})

	to := make([]string, 190)
	for i := range to {
		to[i] = "+234810000" + string(rune('0'+i%10))
	}
	result, err := svc.SendSMS(context.Background(), Actor{ID: "u1"}, &SMSRequest{To: to, Message: "hello"})

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, 190, result.TotalRecipients)
	assert.Equal(t, 150, result.SuccessfulCount)
	assert.Equal(t, 40, result.FailedCount)
	assert.Equal(t, "0.45", result.TotalCost)

	// Exactly one audit row, regardless of recipient count.
	require.Len(t, store.created, 1)
	row := store.created[0]
	assert.Equal(t, result.BatchID, row.BatchID)
	assert.Equal(t, ChannelSMS, row.Type)
	assert.Equal(t, StatusPartial, row.Status)
	assert.Equal(t, "u1", row.CreatedBy)
	assert.Len(t, row.RecipientSample, 3)
	assert.NotNil(t, row.CompletedAt)
}

func TestSendSMSAllDelivered(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeSMSProvider{name: "termii"}
	svc := NewService(store, &fakeFactory{sms: provider}, nil, nil, nil, nil, OrgInfo{})

	result, err := svc.SendSMS(context.Background(), Actor{}, &SMSRequest{
		To: []string{"+2348100000001"}, Message: "hi",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusSent, result.Status)
	assert.Equal(t, 1, provider.calls)
	require.Len(t, store.created, 1)
	assert.Equal(t, StatusSent, store.created[0].Status)
}

func TestSendSMSConfigErrorWritesNoRow(t *testing.T) {
	store := &fakeStore{}
	factory := &fakeFactory{smsErr: common.NewConfigError("termii sms carrier selected but TERMII_API_KEY is not set")}
	svc := NewService(store, factory, nil, nil, nil, nil, OrgInfo{})

	_, err := svc.SendSMS(context.Background(), Actor{}, &SMSRequest{To: []string{"+1"}, Message: "hi"})

	require.Error(t, err)
	var cfgErr *common.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, store.created)

	// A failed resolution is not cached: once configuration is fixed the next
	// request succeeds.
	factory.smsErr = nil
	factory.sms = &fakeSMSProvider{name: "termii"}
	_, err = svc.SendSMS(context.Background(), Actor{}, &SMSRequest{To: []string{"+1"}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, factory.smsCalls)
	assert.Len(t, store.created, 1)
}

func TestProviderCachedAfterSuccess(t *testing.T) {
	store := &fakeStore{}
	factory := &fakeFactory{sms: &fakeSMSProvider{name: "termii"}}
	svc := NewService(store, factory, nil, nil, nil, nil, OrgInfo{})

	for i := 0; i < 3; i++ {
		_, err := svc.SendSMS(context.Background(), Actor{}, &SMSRequest{To: []string{"+1"}, Message: "hi"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, factory.smsCalls)
}

func TestSendSMSQueued(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeSMSProvider{name: "termii"}
	enqueuer := &fakeEnqueuer{}
	svc := NewService(store, &fakeFactory{sms: provider}, nil, nil, nil, enqueuer, OrgInfo{})

	result, err := svc.SendSMS(context.Background(), Actor{ID: "u1"}, &SMSRequest{
		To: []string{"+1", "+2"}, Message: "hi", Queue: true,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, 2, result.TotalRecipients)

	// No carrier call and no audit row until the worker runs.
	assert.Equal(t, 0, provider.calls)
	assert.Empty(t, store.created)

	require.Len(t, enqueuer.payloads, 1)
	payload := enqueuer.payloads[0]
	assert.Equal(t, result.BatchID, payload.BatchID)
	assert.Equal(t, KindSMS, payload.Kind)

	// The worker dispatches under the pre-generated batch ID.
	worker := NewWorker(svc)
	require.NoError(t, worker.ProcessTask(context.Background(), payload))
	require.Len(t, store.created, 1)
	assert.Equal(t, result.BatchID, store.created[0].BatchID)
	assert.Equal(t, 1, provider.calls)
}

func TestSendSMSRateLimited(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeSMSProvider{name: "termii"}
	limiter := &fakeLimiter{allowed: false}
	svc := NewService(store, &fakeFactory{sms: provider}, nil, nil, limiter, nil, OrgInfo{})

	_, err := svc.SendSMS(context.Background(), Actor{Email: "ops@example.org"}, &SMSRequest{
		To: []string{"+1"}, Message: "hi",
	})

	require.Error(t, err)
	var limitErr *common.RateLimitError
	assert.ErrorAs(t, err, &limitErr)
	assert.Equal(t, []string{"ops@example.org"}, limiter.keys)
	assert.Equal(t, 0, provider.calls)
	assert.Empty(t, store.created)
}

func TestSendSMSRateLimiterFailsOpen(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeSMSProvider{name: "termii"}
	limiter := &fakeLimiter{err: errors.New("redis down")}
	svc := NewService(store, &fakeFactory{sms: provider}, nil, nil, limiter, nil, OrgInfo{})

	_, err := svc.SendSMS(context.Background(), Actor{}, &SMSRequest{To: []string{"+1"}, Message: "hi"})

	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestSendWhatsAppRequiresContent(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeFactory{}, nil, nil, nil, nil, OrgInfo{})
	_, err := svc.SendWhatsApp(context.Background(), Actor{}, &WhatsAppRequest{To: []string{"+1"}})
	var valErr *common.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestDispatchTemplateUnknownName(t *testing.T) {
	store := &fakeStore{}
	factory := &fakeFactory{sms: &fakeSMSProvider{name: "termii"}}
	templates := &fakeTemplates{templates: map[string]*tmpl.Template{}}
	svc := NewService(store, factory, templates, nil, nil, nil, OrgInfo{})

	_, err := svc.SendWithTemplate(context.Background(), Actor{}, &TemplateSendRequest{
		TemplateName: "missing",
		Recipients:   []map[string]string{{"phone": "+1"}},
	})

	require.Error(t, err)
	var nfErr *common.NotFoundError
	assert.ErrorAs(t, err, &nfErr)

	// Template resolution happens before any provider work: no adapter is
	// resolved and no row is written.
	assert.Equal(t, 0, factory.smsCalls)
	assert.Empty(t, store.created)
}

func TestDispatchTemplateRendersPerRecipient(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeEmailProvider{name: "aws_ses"}
	templates := &fakeTemplates{templates: map[string]*tmpl.Template{
		"welcome": {
			Name:     "welcome",
			Type:     "email",
			Subject:  "Welcome {{name}}",
			Body:     "Hi {{name}}, from {{organization_name}}",
			IsActive: true,
		},
	}}
	directory := &fakeDirectory{names: map[string]string{"b@example.org": "Bisi"}}
	svc := NewService(store, &fakeFactory{email: provider}, templates, directory, nil, nil, OrgInfo{Name: "Harvesters"})

	result, err := svc.SendWithTemplate(context.Background(), Actor{ID: "u1"}, &TemplateSendRequest{
		TemplateName: "welcome",
		Recipients: []map[string]string{
			{"email": "a@example.org", "name": "Ada"},
			{"email": "b@example.org"}, // name filled from the directory
			{"note": "no address"},     // fails, counted
		},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, 3, result.TotalRecipients)
	assert.Equal(t, 2, result.SuccessfulCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 2, provider.calls)
	assert.ElementsMatch(t, []string{
		"Hi Ada, from Harvesters",
		"Hi Bisi, from Harvesters",
	}, provider.sent)

	// The audit row stores the unrendered template body.
	require.Len(t, store.created, 1)
	row := store.created[0]
	assert.Equal(t, "Hi {{name}}, from {{organization_name}}", row.Message)
	assert.Equal(t, "template:welcome", row.ChannelRoute)
	assert.Equal(t, "welcome", row.Metadata["template_name"])
}

func TestRecordStoreFailurePropagates(t *testing.T) {
	store := &fakeStore{createErr: errors.New("connection refused")}
	svc := NewService(store, &fakeFactory{sms: &fakeSMSProvider{name: "termii"}}, nil, nil, nil, nil, OrgInfo{})

	_, err := svc.SendSMS(context.Background(), Actor{}, &SMSRequest{To: []string{"+1"}, Message: "hi"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting batch log")
}

func TestGetBatchNotFound(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeFactory{}, nil, nil, nil, nil, OrgInfo{})
	_, err := svc.GetBatch(context.Background(), "no-such-batch")
	var nfErr *common.NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestStatsAggregation(t *testing.T) {
	store := &fakeStore{created: []*NotificationLog{
		{Type: ChannelSMS, ChannelRoute: "generic", TotalRecipients: 100, SuccessfulCount: 90, FailedCount: 10, TotalCost: "0.3"},
		{Type: ChannelSMS, ChannelRoute: "dnd", TotalRecipients: 50, SuccessfulCount: 50, TotalCost: "0.15"},
		{Type: ChannelEmail, ChannelRoute: "template:welcome", TotalRecipients: 10, SuccessfulCount: 10, TotalCost: "0.001"},
	}}
	svc := NewService(store, &fakeFactory{}, nil, nil, nil, nil, OrgInfo{})

	report, err := svc.Stats(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.TotalBatches)
	assert.Equal(t, 160, report.Summary.TotalRecipients)
	assert.Equal(t, 150, report.Summary.TotalSuccessful)
	assert.Equal(t, 10, report.Summary.TotalFailed)
	assert.Equal(t, "0.45", report.Summary.TotalCost)
	assert.InDelta(t, 93.75, report.Summary.SuccessRate, 0.01)

	require.Contains(t, report.ByType, "sms")
	assert.Equal(t, 2, report.ByType["sms"].Batches)
	assert.Equal(t, "0.45", report.ByType["sms"].Cost)
	require.Contains(t, report.ByChannel, "generic")
	assert.Equal(t, 1, report.ByChannel["generic"].Batches)
}

func TestGuardedSendRecoversPanic(t *testing.T) {
	outcome := guardedSend("termii", 5, func() DeliveryOutcome {
		panic("boom")
	})
	assert.False(t, outcome.Success)
	assert.Equal(t, 5, outcome.FailedCount)
	assert.Contains(t, outcome.Error, "boom")
}

func TestNormalizeCounters(t *testing.T) {
	// Counters off from total are reconciled so successful+failed == total.
	o := normalizeCounters(DeliveryOutcome{SuccessfulCount: 2, FailedCount: 0}, 5)
	assert.Equal(t, 5, o.TotalRecipients)
	assert.Equal(t, 2, o.SuccessfulCount)
	assert.Equal(t, 3, o.FailedCount)

	o = normalizeCounters(DeliveryOutcome{SuccessfulCount: 9, FailedCount: 0}, 5)
	assert.Equal(t, 5, o.SuccessfulCount)
	assert.Equal(t, 0, o.FailedCount)
}
