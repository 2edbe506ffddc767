package template

import (
	"context"
	"testing"

	"outreach/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byName  map[string]*Template
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byName: make(map[string]*Template)}
}

func (f *fakeStore) Create(ctx context.Context, t *Template) error {
	f.byName[t.Name] = t
	return nil
}

func (f *fakeStore) GetByName(ctx context.Context, name string) (*Template, error) {
	return f.byName[name], nil
}

func (f *fakeStore) List(ctx context.Context, filter ListFilter) ([]*Template, error) {
	var out []*Template
	for _, t := range f.byName {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, t *Template) error {
	f.updates++
	f.byName[t.Name] = t
	return nil
}

func TestCreateExtractsVariables(t *testing.T) {
	svc := NewService(newFakeStore())

	created, err := svc.Create(context.Background(), &CreateRequest{
		Name:     "welcome",
		Type:     "email",
		Subject:  "Welcome {{name}}",
		Body:     "Hi {{name}}, your group is {{group}}",
		HTMLBody: "<p>Hi {{name}}</p><img src=\"{{header_image}}\">",
	})

	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, []string{"name", "group", "header_image"}, created.Variables)
}

func TestCreateDuplicateName(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.Create(context.Background(), &CreateRequest{Name: "welcome", Type: "sms", Body: "hi"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &CreateRequest{Name: "welcome", Type: "sms", Body: "hi again"})
	var conflict *common.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGetUnknownName(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.Get(context.Background(), "nope")
	var nf *common.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestGetActiveByNameSkipsInactive(t *testing.T) {
	store := newFakeStore()
	store.byName["old"] = &Template{Name: "old", Type: "sms", Body: "hi", IsActive: false}
	svc := NewService(store)

	got, err := svc.GetActiveByName(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = svc.GetActiveByName(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateReextractsVariables(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.Create(context.Background(), &CreateRequest{
		Name: "reminder", Type: "sms", Body: "Hi {{name}}",
	})
	require.NoError(t, err)

	newBody := "Hi {{name}}, see you on {{date}}"
	updated, err := svc.Update(context.Background(), "reminder", &UpdateRequest{Body: &newBody})

	require.NoError(t, err)
	assert.Equal(t, newBody, updated.Body)
	assert.Equal(t, []string{"name", "date"}, updated.Variables)
	assert.False(t, updated.UpdatedAt.IsZero())
	assert.Equal(t, 1, store.updates)
}

func TestDeactivate(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.Create(context.Background(), &CreateRequest{Name: "welcome", Type: "sms", Body: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), "welcome"))
	assert.False(t, store.byName["welcome"].IsActive)

	// Still readable through Get, just no longer resolvable for sends.
	got, err := svc.Get(context.Background(), "welcome")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
