package xrpl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"curtailment-controlplane/pkg/errutil"

	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handle func(method string, params map[string]any) string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string           `json:"method"`
			Params []map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Params, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handle(req.Method, req.Params[0])))
	}))
	t.Cleanup(srv.Close)

	return NewClient(Options{Addr: srv.URL})
}

func TestTxValidatedSuccess(t *testing.T) {
	c := rpcServer(t, func(method string, params map[string]any) string {
		require.Equal(t, "tx", method)
		require.Equal(t, "ABC", params["transaction"])
		return `{"result": {
			"hash": "ABC", "TransactionType": "EscrowCreate", "Account": "rCreator",
			"Sequence": 42, "validated": true, "ledger_index": 100,
			"meta": {"TransactionResult": "tesSUCCESS"}, "status": "success"}}`
	})

	tx, err := c.Tx(context.Background(), "ABC")
	require.NoError(t, err)
	require.True(t, tx.Succeeded())
	require.Equal(t, uint32(42), tx.AccountSequence())
	require.Equal(t, "EscrowCreate", tx.TransactionType)
	require.NotEmpty(t, tx.Raw)
}

func TestTxFailedResult(t *testing.T) {
	c := rpcServer(t, func(string, map[string]any) string {
		return `{"result": {"hash": "ABC", "validated": true, "Sequence": 0, "TicketSequence": 9,
			"meta": {"TransactionResult": "tecNO_PERMISSION"}, "status": "success"}}`
	})

	tx, err := c.Tx(context.Background(), "ABC")
	require.NoError(t, err)
	require.True(t, tx.Validated)
	require.False(t, tx.Succeeded())
	require.Equal(t, uint32(9), tx.AccountSequence())
}

func TestTxNotFound(t *testing.T) {
	c := rpcServer(t, func(string, map[string]any) string {
		return `{"result": {"status": "error", "error": "txnNotFound", "error_message": "Transaction not found."}}`
	})

	_, err := c.Tx(context.Background(), "abc")
	require.ErrorIs(t, err, ErrTxNotFound)
}

func TestTxBusyNodeIsTransient(t *testing.T) {
	c := rpcServer(t, func(string, map[string]any) string {
		return `{"result": {"status": "error", "error": "tooBusy"}}`
	})

	_, err := c.Tx(context.Background(), "abc")
	require.True(t, errutil.IsTransient(err))
}

func TestValidatedCloseTime(t *testing.T) {
	c := rpcServer(t, func(method string, params map[string]any) string {
		require.Equal(t, "ledger", method)
		require.Equal(t, "validated", params["ledger_index"])
		return `{"result": {"ledger": {"close_time": 760000000}, "validated": true, "status": "success"}}`
	})

	now, err := c.ValidatedCloseTime(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(760000000), now)
}

func TestHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(Options{Addr: srv.URL}).ValidatedCloseTime(context.Background())
	require.Error(t, err)
	require.Equal(t, errutil.StatusServiceUnavailable, errutil.StatusOf(err))
}
