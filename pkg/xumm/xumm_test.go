package xumm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"curtailment-controlplane/pkg/errutil"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(Options{Addr: srv.URL, ApiKey: "key", ApiSecret: "secret"})
}

func TestPayloadSigned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/platform/payload/p-1", r.URL.Path)
		require.Equal(t, "key", r.Header.Get("X-API-Key"))
		require.Equal(t, "secret", r.Header.Get("X-API-Secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"meta": {"exists": true, "resolved": true, "signed": true, "expired": false},
			"response": {"txid": "ABC123", "account": "rCreator"},
			"payload": {"tx_type": "EscrowCreate"}
		}`))
	})

	p, err := c.Payload(context.Background(), "p-1")
	require.NoError(t, err)
	require.True(t, p.Meta.Resolved)
	require.True(t, p.Meta.Signed)
	require.False(t, p.Meta.Expired)
	require.Equal(t, "ABC123", p.Response.TxID)
	require.Equal(t, "EscrowCreate", p.Details.TxType)
}

func TestPayloadNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Payload(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPayloadNotFound)
}

func TestPayloadServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": {"reference": "r-9", "code": 502}}`))
	})

	_, err := c.Payload(context.Background(), "p-1")
	require.Error(t, err)
	require.True(t, errutil.IsTransient(err))
	require.Contains(t, err.Error(), "r-9")
}

func TestCreatePostsTxJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/platform/payload", r.URL.Path)

		var body CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "EscrowFinish", body.TxJSON["TransactionType"])
		require.Equal(t, "rOwner", body.TxJSON["Owner"])
		require.Equal(t, "finish_escrow_e-1", body.CustomMeta.Identifier)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uuid": "new-uuid", "next": {"always": "https://xumm.app/sign/new-uuid"}, "refs": {"qr_png": "https://xumm.app/qr.png"}}`))
	})

	out, err := c.Create(context.Background(), CreateRequest{
		TxJSON: map[string]any{
			"TransactionType": "EscrowFinish",
			"Account":         "rCreator",
			"Owner":           "rOwner",
			"OfferSequence":   7,
		},
		CustomMeta: &CustomMeta{Identifier: "finish_escrow_e-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "new-uuid", out.UUID)
	require.Equal(t, "https://xumm.app/sign/new-uuid", out.Next.Always)
}

func TestCreateWithoutUUIDFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Create(context.Background(), CreateRequest{TxJSON: map[string]any{"TransactionType": "Payment"}})
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadGateway, errutil.StatusOf(err))
}

func TestCancelledContextStopsBeforeRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Payload(ctx, "p-1")
	require.Error(t, err)
	require.False(t, called)
}
