package models

import "github.com/google/uuid"

// Discovery is the payload posted to the API when a miner records a score at
// or above the discovery threshold. The old keypair is included so the API can
// rotate out the superseded twin.
type Discovery struct {
	EventID           uuid.UUID `json:"-"`
	TargetID          string    `json:"targetId"`
	Score             uint8     `json:"score"`
	TwinAddress       string    `json:"twinAddress"`
	TwinPrivateKey    string    `json:"twinPrivateKey"`
	OldTwinAddress    *string   `json:"oldTwinAddress"`
	OldTwinPrivateKey *string   `json:"oldTwinPrivateKey"`
}
