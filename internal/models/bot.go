package models

import "time"

type BotStatus string

const (
	BotActive  BotStatus = "ACTIVE"
	BotOnHold  BotStatus = "ON_HOLD"
	BotStopped BotStatus = "STOPPED"
)

// BotState is an immutable snapshot of the bot's operational status.
type BotState struct {
	Status       BotStatus `json:"status"`
	LastChangeAt time.Time `json:"last_change_at"`
	Reason       string    `json:"reason"`
}
