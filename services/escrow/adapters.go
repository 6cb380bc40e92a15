package escrow

import (
	"context"
	"errors"
	"fmt"

	"curtailment-controlplane/pkg/xrpl"
	"curtailment-controlplane/pkg/xumm"
)

// XummGateway serves both payload lookups and finish/cancel signing
// requests through the Xumm platform API.
type XummGateway struct {
	client *xumm.Client
}

func NewXummGateway(client *xumm.Client) *XummGateway {
	return &XummGateway{client: client}
}

func (g *XummGateway) Payload(ctx context.Context, payloadID string) (*PayloadStatus, error) {
	p, err := g.client.Payload(ctx, payloadID)
	if errors.Is(err, xumm.ErrPayloadNotFound) {
		return nil, fmt.Errorf("%w: payload %s", ErrMissingLink, payloadID)
	}
	if err != nil {
		return nil, err
	}

	return &PayloadStatus{
		Resolved: p.Meta.Resolved,
		Signed:   p.Meta.Signed,
		Expired:  p.Meta.Expired,
		TxID:     p.Response.TxID,
	}, nil
}

func (g *XummGateway) Finish(ctx context.Context, e *Escrow, signer string) (*Outcome, error) {
	if e.OfferSequence == nil {
		return nil, fmt.Errorf("%w: escrow %s has no offer sequence", ErrMissingLink, e.ID)
	}

	tx := map[string]any{
		"TransactionType": "EscrowFinish",
		"Account":         signer,
		"Owner":           e.SourceAddress,
		"OfferSequence":   *e.OfferSequence,
	}
	if e.Condition != "" {
		tx["Condition"] = e.Condition
	}
	if e.Fulfillment != "" {
		tx["Fulfillment"] = e.Fulfillment
	}

	return g.create(ctx, tx, "finish_escrow_"+e.ID)
}

func (g *XummGateway) Cancel(ctx context.Context, e *Escrow, signer string) (*Outcome, error) {
	if e.OfferSequence == nil {
		return nil, fmt.Errorf("%w: escrow %s has no offer sequence", ErrMissingLink, e.ID)
	}

	return g.create(ctx, map[string]any{
		"TransactionType": "EscrowCancel",
		"Account":         signer,
		"Owner":           e.SourceAddress,
		"OfferSequence":   *e.OfferSequence,
	}, "cancel_escrow_"+e.ID)
}

func (g *XummGateway) create(ctx context.Context, tx map[string]any, identifier string) (*Outcome, error) {
	created, err := g.client.Create(ctx, xumm.CreateRequest{
		TxJSON:     tx,
		CustomMeta: &xumm.CustomMeta{Identifier: identifier},
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{PayloadID: created.UUID, SignURL: created.Next.Always}, nil
}

// XrplGateway confirms transactions against a rippled node.
type XrplGateway struct {
	client *xrpl.Client
}

func NewXrplGateway(client *xrpl.Client) *XrplGateway {
	return &XrplGateway{client: client}
}

func (g *XrplGateway) Confirm(ctx context.Context, txID string) (*LedgerTx, error) {
	tx, err := g.client.Tx(ctx, txID)
	if errors.Is(err, xrpl.ErrTxNotFound) {
		return nil, ErrTxPending
	}
	if err != nil {
		return nil, err
	}
	if !tx.Validated {
		return nil, ErrTxPending
	}

	return &LedgerTx{
		Hash:          tx.Hash,
		Validated:     tx.Validated,
		Succeeded:     tx.Succeeded(),
		OfferSequence: tx.AccountSequence(),
		Raw:           tx.Raw,
	}, nil
}

func (g *XrplGateway) CurrentTime(ctx context.Context) (int64, error) {
	return g.client.ValidatedCloseTime(ctx)
}
