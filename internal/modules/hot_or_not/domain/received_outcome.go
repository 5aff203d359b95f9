package domain

import "time"

// ReceivedOutcome is a settlement notification received from another
// instance for a bet this instance's owner placed.
type ReceivedOutcome struct {
	PostID     uint64                `json:"post_id"`
	Outcome    BetOutcomeForBetMaker `json:"outcome"`
	ReceivedAt time.Time             `json:"received_at"`
}
