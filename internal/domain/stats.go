package domain

import "time"

// ChatStats combines current profile fields with lifetime ledger aggregates
// for display. Pure read; tolerant of an empty session history.
type ChatStats struct {
	Tier               SubscriptionTier
	QuotaUsed          int32
	QuotaLimit         int32 // 0 when unlimited
	QuotaRemaining     int32 // -1 when unlimited
	IsUnlimited        bool
	QuotaResetAt       time.Time
	TotalSessions      int64
	TotalMessages      int64
	AvgMessagesPerChat int64 // integer, rounded; 0 when no sessions exist
}

// AverageMessages computes the rounded per-session message average.
// Returns 0 for an empty history rather than dividing by zero.
func AverageMessages(totalMessages, totalSessions int64) int64 {
	if totalSessions == 0 {
		return 0
	}
	return (totalMessages + totalSessions/2) / totalSessions
}
