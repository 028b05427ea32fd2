package shared

import (
	"time"

	"github.com/google/uuid"
)

// SettlementEvent is published to Kafka when a withdrawal reaches a terminal
// state. Downstream consumers (notifications, analytics) react to it; the
// settlement engine itself never consumes these messages.
type SettlementEvent struct {
	Reference  string           `json:"reference"`
	MemberID   uuid.UUID        `json:"member_id"`
	Status     WithdrawalStatus `json:"status"`
	Amount     int64            `json:"amount"` // Stored in cents/minor units
	Reason     string           `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
