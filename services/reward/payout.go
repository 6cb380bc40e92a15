package reward

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"curtailment-controlplane/pkg/xumm"
	"curtailment-controlplane/services/escrow"

	"github.com/shopspring/decimal"
)

type PayoutRequest struct {
	PaymentID     string
	EventID       string
	ParticipantID string
	Destination   string
	Amount        decimal.Decimal
	EnergySaved   decimal.Decimal
}

// Payout asks a wallet to sign a reward payment.
type Payout interface {
	RequestPayout(ctx context.Context, req PayoutRequest) (*escrow.Outcome, error)
}

// XummPayout builds XRP Payment payloads paid from the platform reserve.
type XummPayout struct {
	client  *xumm.Client
	reserve string
}

func NewXummPayout(client *xumm.Client, reserve string) *XummPayout {
	return &XummPayout{client: client, reserve: reserve}
}

func (p *XummPayout) RequestPayout(ctx context.Context, req PayoutRequest) (*escrow.Outcome, error) {
	if p.reserve == "" {
		return nil, errors.New("reward: no reserve address configured")
	}

	created, err := p.client.Create(ctx, xumm.CreateRequest{
		TxJSON: PaymentTx(p.reserve, req),
		CustomMeta: &xumm.CustomMeta{
			Identifier:  fmt.Sprintf("reward_payment_%s_%s_%s", req.EventID, req.ParticipantID, req.PaymentID),
			Instruction: fmt.Sprintf("Payment of %s XRP for energy savings of %s kWh", req.Amount.String(), req.EnergySaved.String()),
		},
	})
	if err != nil {
		return nil, err
	}
	return &escrow.Outcome{PayloadID: created.UUID, SignURL: created.Next.Always}, nil
}

// PaymentTx is the ledger Payment for one reward attempt.
func PaymentTx(reserve string, req PayoutRequest) map[string]any {
	return map[string]any{
		"TransactionType": "Payment",
		"Account":         reserve,
		"Destination":     req.Destination,
		"Amount":          Drops(req.Amount),
		"Memos": []map[string]any{
			{
				"Memo": map[string]string{
					"MemoData": hexUpper("XRPAtom Reward: Event " + req.EventID),
					"MemoType": hexUpper("text/plain"),
				},
			},
		},
	}
}

func hexUpper(s string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(s)))
}
