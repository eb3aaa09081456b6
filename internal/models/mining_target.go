package models

import (
	"time"

	"github.com/twin-miner/internal/types"
)

// MiningTarget is a pattern the miners search for, together with the best
// keypair found so far. Rows are created by the API; miners only ever raise
// the score through a conditional update.
type MiningTarget struct {
	ID             string           `json:"id" db:"id"`
	Address        string           `json:"address" db:"address"`
	Pattern        string           `json:"pattern" db:"pattern"`
	Score          uint8            `json:"score" db:"score"`
	TwinAddress    *string          `json:"twinAddress,omitempty" db:"twin_address"`
	TwinPrivateKey *string          `json:"-" db:"twin_private_key"`
	Kind           types.TargetKind `json:"kind" db:"kind"`
	Deployed       bool             `json:"deployed" db:"deployed"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
}

// Active reports whether the target is still searched for under the given
// score ceiling.
func (t *MiningTarget) Active(ceiling uint8) bool {
	return t.Score < ceiling
}

// Clone returns a deep copy so callers can't mutate a store's row.
func (t *MiningTarget) Clone() *MiningTarget {
	c := *t
	if t.TwinAddress != nil {
		addr := *t.TwinAddress
		c.TwinAddress = &addr
	}
	if t.TwinPrivateKey != nil {
		key := *t.TwinPrivateKey
		c.TwinPrivateKey = &key
	}
	return &c
}

// TwinUpdate is the outcome of a conditional update. When Applied is set, the
// Previous fields describe the row as it was immediately before the write.
type TwinUpdate struct {
	Applied                bool
	PreviousScore          uint8
	PreviousTwinAddress    *string
	PreviousTwinPrivateKey *string
}
