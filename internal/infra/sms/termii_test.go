package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"outreach/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(serverURL string) *TermiiProvider {
	p := NewTermiiProvider("test-key", "TestSender")
	p.baseURL = serverURL
	return p
}

func recipients(n int) []string {
	to := make([]string, n)
	for i := range to {
		to[i] = fmt.Sprintf("+23481%08d", i)
	}
	return to
}

func TestTermiiSendSingle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, termiiSendPath, r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-key", payload["api_key"])
		assert.Equal(t, "+2348100000001", payload["to"])
		assert.Equal(t, "generic", payload["channel"])

		json.NewEncoder(w).Encode(map[string]string{
			"code": "ok", "message_id": "msg-123", "message": "Successfully Sent",
		})
	}))
	defer server.Close()

	outcome := testProvider(server.URL).SendSMS(context.Background(), []string{"+2348100000001"}, "hello",
		notification.SMSOptions{Route: "generic", MessageType: "plain"})

	assert.True(t, outcome.Success)
	assert.Equal(t, "msg-123", outcome.MessageID)
	assert.Equal(t, termiiSMSCost, outcome.Cost)
	assert.Equal(t, 1, outcome.SuccessfulCount)
	assert.NotNil(t, outcome.SentAt)
}

func TestTermiiSendSingleCarrierRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"code": "err", "message": "Insufficient balance",
		})
	}))
	defer server.Close()

	outcome := testProvider(server.URL).SendSMS(context.Background(), []string{"+1"}, "hello", notification.SMSOptions{})

	assert.False(t, outcome.Success)
	assert.Equal(t, "Insufficient balance", outcome.Error)
	assert.Equal(t, 1, outcome.FailedCount)
	assert.Equal(t, "0", outcome.Cost)
	assert.Contains(t, outcome.ProviderResponse, "Insufficient balance")
}

func TestTermiiSendSingleHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	outcome := testProvider(server.URL).SendSMS(context.Background(), []string{"+1"}, "hello", notification.SMSOptions{})

	assert.False(t, outcome.Success)
	// An empty carrier code on a non-200 becomes a synthetic http_NNN code.
	assert.Contains(t, outcome.Error, "http_503")
}

func TestTermiiHTTPErrorDespiteOKBody(t *testing.T) {
	// Gateways can surface a 502 while relaying a stale success body; the
	// status decides, never the body alone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"code": "ok", "message_id": "ghost-1"})
	}))
	defer server.Close()

	p := testProvider(server.URL)

	single := p.SendSMS(context.Background(), []string{"+2348100000001"}, "hello", notification.SMSOptions{})
	assert.False(t, single.Success)
	assert.Equal(t, 1, single.FailedCount)
	assert.Equal(t, 0, single.SuccessfulCount)
	assert.Equal(t, "0", single.Cost)
	assert.Contains(t, single.Error, "http_502")

	bulk := p.SendSMS(context.Background(), recipients(150), "hello", notification.SMSOptions{})
	assert.False(t, bulk.Success)
	assert.Equal(t, 150, bulk.FailedCount)
	assert.Equal(t, "0", bulk.Cost)
	assert.Empty(t, bulk.MessageID)
}

func TestTermiiBulkSingleChunk(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, termiiBulkSendPath, r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Len(t, payload["to"], 100)

		json.NewEncoder(w).Encode(map[string]string{"code": "ok", "message_id": "bulk-1"})
	}))
	defer server.Close()

	outcome := testProvider(server.URL).SendSMS(context.Background(), recipients(100), "hello", notification.SMSOptions{})

	// Exactly 100 recipients fit in one carrier call.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, outcome.Success)
	assert.Equal(t, 100, outcome.TotalRecipients)
	assert.Equal(t, 100, outcome.SuccessfulCount)
	assert.Equal(t, "0.3", outcome.Cost)
}

func TestTermiiBulkSplitsAtBoundary(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{"code": "ok", "message_id": fmt.Sprintf("bulk-%d", atomic.LoadInt32(&calls))})
	}))
	defer server.Close()

	outcome := testProvider(server.URL).SendSMS(context.Background(), recipients(101), "hello", notification.SMSOptions{})

	// 101 recipients need a second chunk.
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, outcome.Success)
	assert.Equal(t, 101, outcome.TotalRecipients)
	assert.Equal(t, 101, outcome.SuccessfulCount)
	assert.Equal(t, "0.303", outcome.Cost)
}

func TestTermiiBulkPartialFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			To []string `json:"to"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		atomic.AddInt32(&calls, 1)

		// Fail the smaller trailing chunk only.
		if len(payload.To) < termiiMaxRecipients {
			json.NewEncoder(w).Encode(map[string]string{"code": "err", "message": "route unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"code": "ok", "message_id": "bulk-ok"})
	}))
	defer server.Close()

	outcome := testProvider(server.URL).SendSMS(context.Background(), recipients(150), "hello", notification.SMSOptions{})

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.False(t, outcome.Success)
	assert.Equal(t, 150, outcome.TotalRecipients)
	assert.Equal(t, 100, outcome.SuccessfulCount)
	assert.Equal(t, 50, outcome.FailedCount)
	assert.Equal(t, "0.3", outcome.Cost)
	assert.Contains(t, outcome.Error, "route unavailable")
	assert.Equal(t, "bulk-ok", outcome.MessageID)
}

func TestTermiiTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	outcome := testProvider(server.URL).SendSMS(context.Background(), []string{"+1"}, "hello", notification.SMSOptions{})

	assert.False(t, outcome.Success)
	assert.Equal(t, 1, outcome.FailedCount)
	assert.NotEmpty(t, outcome.Error)
}

func TestChunkRecipients(t *testing.T) {
	assert.Len(t, chunkRecipients(recipients(100), 100), 1)
	assert.Len(t, chunkRecipients(recipients(101), 100), 2)
	assert.Len(t, chunkRecipients(recipients(250), 100), 3)

	chunks := chunkRecipients(recipients(250), 100)
	assert.Len(t, chunks[2], 50)
}

func TestBulkCost(t *testing.T) {
	assert.Equal(t, "0.3", bulkCost("0.003", 100))
	assert.Equal(t, "0.003", bulkCost("0.003", 1))
	assert.Equal(t, "0", bulkCost("not-a-number", 10))
}
