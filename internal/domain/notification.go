package domain

import "time"

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	Timestamp time.Time `json:"timestamp"`
}

type ConnectionPhase string

const (
	PhaseClosed ConnectionPhase = "CLOSED"
	PhaseOpen   ConnectionPhase = "OPEN"
)

// ChannelState is the realtime channel's externally visible state. One
// instance exists per channel; TargetUserID is retained across reconnects
// so automatic recovery reattaches to the same identity.
type ChannelState struct {
	Phase        ConnectionPhase `json:"phase"`
	TargetUserID string          `json:"target_user_id"`
}
