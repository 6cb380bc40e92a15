package rediskey

import "fmt"

// Reconciler keys (global convention across services)
const (
	EscrowLockPrefix  = "curtailment:escrow:lock"
	PaymentLockPrefix = "curtailment:payment:lock"
	RewardLockPrefix  = "curtailment:reward:lock"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildEscrowLockKey returns "curtailment:escrow:lock:{escrowID}"
func BuildEscrowLockKey(escrowID string) string {
	return NamespaceKey(EscrowLockPrefix, escrowID)
}

// BuildPaymentLockKey returns "curtailment:payment:lock:{paymentID}"
func BuildPaymentLockKey(paymentID string) string {
	return NamespaceKey(PaymentLockPrefix, paymentID)
}

// BuildRewardLockKey returns "curtailment:reward:lock:{eventID}"
func BuildRewardLockKey(eventID string) string {
	return NamespaceKey(RewardLockPrefix, eventID)
}
