package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/lazcrawl/models"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func sampleEvent() *Event {
	out, _ := models.NewBatch().Close(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return BatchCompleted(out, "data/lazada_products_x.json", time.Unix(1700000000, 0))
}

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, Deliver(context.Background(), srv.URL, "s3cret", sampleEvent()))
	assert.Equal(t, "sha256="+Sign("s3cret", gotBody), gotSig)

	var ev struct {
		Type string       `json:"type"`
		Data BatchSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &ev))
	assert.Equal(t, EventBatchCompleted, ev.Type)
	assert.Equal(t, "data/lazada_products_x.json", ev.Data.Location)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, Deliver(context.Background(), srv.URL, "", sampleEvent()))
}

func TestDeliverWithRetry_RecoversFromServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, DeliverWithRetry(context.Background(), fastRetry(), srv.URL, "", sampleEvent()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliverWithRetry_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := DeliverWithRetry(context.Background(), fastRetry(), srv.URL, "", sampleEvent())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeliverWithRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := DeliverWithRetry(context.Background(), fastRetry(), srv.URL, "", sampleEvent())
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load(), "one attempt plus three retries")
}
