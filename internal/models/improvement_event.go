package models

import (
	"time"

	"github.com/google/uuid"
)

// ImprovementEvent records one successful conditional update. It is written to
// the analytics store and never carries private key material.
type ImprovementEvent struct {
	EventID       uuid.UUID `json:"eventId" ch:"event_id"`
	TargetID      string    `json:"targetId" ch:"target_id"`
	Score         uint8     `json:"score" ch:"score"`
	PreviousScore uint8     `json:"previousScore" ch:"previous_score"`
	TwinAddress   string    `json:"twinAddress" ch:"twin_address"`
	WorkerID      uint32    `json:"workerId" ch:"worker_id"`
	Sequence      uint64    `json:"sequence" ch:"sequence"`
	Version       string    `json:"version" ch:"version"`
	FoundAt       time.Time `json:"foundAt" ch:"found_at"`
}
