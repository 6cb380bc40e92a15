package taskname

const (
	// Reward tasks
	RewardSettleEscrow = "reward:settle:escrow"
	RewardAllocate     = "reward:allocate:event"
	RewardReleaseHold  = "reward:hold:release"
)
