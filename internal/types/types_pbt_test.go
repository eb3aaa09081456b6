package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestTargetKindRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: only the two known kinds parse, and they parse to themselves
	properties.Property("parse accepts exactly the known kinds", prop.ForAll(
		func(s string) bool {
			k, err := ParseTargetKind(s)
			if s == string(KindWallet) || s == string(KindToken) {
				return err == nil && string(k) == s
			}
			return err != nil
		},
		gen.OneGenOf(gen.Const("wallet"), gen.Const("token"), gen.AlphaString()),
	))

	properties.TestingRun(t)
}
