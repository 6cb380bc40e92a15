// Package xrpl queries a rippled node over its JSON-RPC interface.
package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/errutil"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"golang.org/x/time/rate"
)

var Module = fx.Module("xrpl",
	fx.Provide(New),
)

const ResultSuccess = "tesSUCCESS"

var ErrTxNotFound = errors.New("xrpl: transaction not found")

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type Tx struct {
	Hash            string `json:"hash"`
	TransactionType string `json:"TransactionType"`
	Account         string `json:"Account"`
	Sequence        uint32 `json:"Sequence"`
	TicketSequence  uint32 `json:"TicketSequence"`
	LedgerIndex     uint32 `json:"ledger_index"`
	Validated       bool   `json:"validated"`
	Meta            struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`

	Raw json.RawMessage `json:"-"`
}

// Succeeded reports a validated tesSUCCESS outcome.
func (t *Tx) Succeeded() bool {
	return t.Validated && t.Meta.TransactionResult == ResultSuccess
}

// AccountSequence is the sequence that later EscrowFinish/EscrowCancel
// transactions reference as OfferSequence.
func (t *Tx) AccountSequence() uint32 {
	if t.Sequence == 0 {
		return t.TicketSequence
	}
	return t.Sequence
}

type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

type Options struct {
	Addr      string
	Timeout   time.Duration
	RateLimit float64
}

func New(cfg *config.Config) *Client {
	return NewClient(Options{
		Addr:      cfg.Xrpl.Addr,
		Timeout:   cfg.Xrpl.Timeout,
		RateLimit: cfg.Xrpl.RateLimit,
	})
}

func NewClient(opts Options) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		if b := int(opts.RateLimit); b > 1 {
			burst = b
		}
	}

	h := resty.New().
		SetBaseURL(strings.TrimRight(opts.Addr, "/")).
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		h.SetTimeout(opts.Timeout)
	}

	return &Client{http: h, limiter: rate.NewLimiter(limit, burst)}
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{Method: method, Params: []any{params}}).
		SetResult(&out).
		Post("/")
	if err != nil {
		return nil, errutil.Unavailable("xrpl request failed", err)
	}
	if resp.IsError() {
		return nil, errutil.New(errutil.FromHTTP(resp.StatusCode()), fmt.Sprintf("xrpl %s: http %d", method, resp.StatusCode()))
	}
	if len(out.Result) == 0 {
		return nil, errutil.BadGateway(fmt.Sprintf("xrpl %s: empty result", method), nil)
	}

	var st rpcStatus
	if err := json.Unmarshal(out.Result, &st); err != nil {
		return nil, errutil.BadGateway(fmt.Sprintf("xrpl %s: malformed result", method), err)
	}
	if st.Status == "error" {
		return nil, rpcError(method, st)
	}

	return out.Result, nil
}

func rpcError(method string, st rpcStatus) error {
	switch st.Error {
	case "txnNotFound":
		return ErrTxNotFound
	case "noNetwork", "noCurrent", "noClosed", "tooBusy", "slowDown", "lgrNotFound":
		return errutil.Unavailable(fmt.Sprintf("xrpl %s: %s", method, st.Error), nil)
	case "notValidHash", "invalidParams":
		return errutil.BadRequest(fmt.Sprintf("xrpl %s: %s", method, st.Error), nil)
	default:
		return errutil.BadGateway(fmt.Sprintf("xrpl %s: %s %s", method, st.Error, st.ErrorMessage), nil)
	}
}

// Tx looks a transaction up by hash.
func (c *Client) Tx(ctx context.Context, hash string) (*Tx, error) {
	raw, err := c.call(ctx, "tx", map[string]any{
		"transaction": hash,
		"binary":      false,
	})
	if err != nil {
		return nil, err
	}

	var tx Tx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, errutil.BadGateway("xrpl tx: malformed transaction", err)
	}
	tx.Raw = raw
	return &tx, nil
}

// ValidatedCloseTime returns the close time of the latest validated ledger
// in ledger seconds.
func (c *Client) ValidatedCloseTime(ctx context.Context) (int64, error) {
	raw, err := c.call(ctx, "ledger", map[string]any{
		"ledger_index": "validated",
	})
	if err != nil {
		return 0, err
	}

	var res struct {
		Ledger struct {
			CloseTime int64 `json:"close_time"`
		} `json:"ledger"`
		Validated bool `json:"validated"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, errutil.BadGateway("xrpl ledger: malformed ledger", err)
	}
	if res.Ledger.CloseTime == 0 {
		return 0, errutil.BadGateway("xrpl ledger: missing close_time", nil)
	}
	return res.Ledger.CloseTime, nil
}
