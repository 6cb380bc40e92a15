// Package xumm is a thin client for the Xumm platform payload API.
package xumm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"curtailment-controlplane/pkg/config"
	"curtailment-controlplane/pkg/errutil"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var Module = fx.Module("xumm",
	fx.Provide(New),
)

var ErrPayloadNotFound = errors.New("xumm: payload not found")

type Meta struct {
	Exists    bool `json:"exists"`
	Resolved  bool `json:"resolved"`
	Signed    bool `json:"signed"`
	Cancelled bool `json:"cancelled"`
	Expired   bool `json:"expired"`
}

type Response struct {
	TxID    string `json:"txid"`
	Account string `json:"account"`
	HexTx   string `json:"hex"`
}

type Payload struct {
	Meta     Meta     `json:"meta"`
	Response Response `json:"response"`
	Details  struct {
		TxType string `json:"tx_type"`
	} `json:"payload"`
}

type CustomMeta struct {
	Identifier  string `json:"identifier,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

type CreateRequest struct {
	TxJSON     map[string]any `json:"txjson"`
	CustomMeta *CustomMeta    `json:"custom_meta,omitempty"`
}

type Created struct {
	UUID string `json:"uuid"`
	Next struct {
		Always string `json:"always"`
	} `json:"next"`
	Refs struct {
		QrPng string `json:"qr_png"`
	} `json:"refs"`
}

type apiError struct {
	Error struct {
		Reference string `json:"reference"`
		Code      int    `json:"code"`
	} `json:"error"`
}

type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

type Options struct {
	Addr      string
	ApiKey    string
	ApiSecret string
	Timeout   time.Duration
	RateLimit float64
}

func New(cfg *config.Config) *Client {
	return NewClient(Options{
		Addr:      cfg.Xumm.Addr,
		ApiKey:    cfg.Xumm.ApiKey,
		ApiSecret: cfg.Xumm.ApiSecret,
		Timeout:   cfg.Xumm.Timeout,
		RateLimit: cfg.Xumm.RateLimit,
	})
}

func NewClient(opts Options) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		burst = int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	h := resty.New().
		SetBaseURL(strings.TrimRight(opts.Addr, "/")).
		SetHeader("X-API-Key", opts.ApiKey).
		SetHeader("X-API-Secret", opts.ApiSecret).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		h.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:    h,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Payload fetches the current status of a signing payload.
func (c *Client) Payload(ctx context.Context, uuid string) (*Payload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out Payload
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("uuid", uuid).
		SetResult(&out).
		SetError(&apiError{}).
		Get("/api/v1/platform/payload/{uuid}")
	if err != nil {
		return nil, errutil.Unavailable("xumm request failed", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrPayloadNotFound
	}
	if resp.IsError() {
		return nil, statusError("get payload", resp)
	}

	return &out, nil
}

// Create submits a transaction template for the user to sign.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out Created
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/v1/platform/payload")
	if err != nil {
		return nil, errutil.Unavailable("xumm request failed", err)
	}
	if resp.IsError() {
		return nil, statusError("create payload", resp)
	}
	if out.UUID == "" {
		return nil, errutil.BadGateway("xumm returned no payload uuid", nil)
	}

	zap.L().Debug("xumm payload created",
		zap.String("uuid", out.UUID),
		zap.Any("tx_type", req.TxJSON["TransactionType"]),
	)

	return &out, nil
}

func statusError(op string, resp *resty.Response) error {
	msg := fmt.Sprintf("xumm %s: http %d", op, resp.StatusCode())
	if e, ok := resp.Error().(*apiError); ok && e.Error.Reference != "" {
		msg = fmt.Sprintf("%s (code %d, ref %s)", msg, e.Error.Code, e.Error.Reference)
	}
	return errutil.New(errutil.FromHTTP(resp.StatusCode()), msg)
}
