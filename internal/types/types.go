// Package types provides common type definitions for the twin miner.
package types

import "fmt"

// TargetKind tags what kind of account a mining target mirrors.
// It is descriptive only and never affects scoring.
type TargetKind string

const (
	// KindWallet is a target mirroring a wallet address
	KindWallet TargetKind = "wallet"
	// KindToken is a target mirroring a token mint address
	KindToken TargetKind = "token"
)

// Valid reports whether k is one of the known target kinds
func (k TargetKind) Valid() bool {
	switch k {
	case KindWallet, KindToken:
		return true
	default:
		return false
	}
}

// ParseTargetKind converts a stored kind column into a TargetKind
func ParseTargetKind(s string) (TargetKind, error) {
	k := TargetKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown target kind %q", s)
	}
	return k, nil
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
