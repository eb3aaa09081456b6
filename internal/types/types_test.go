package types

import (
	"testing"
)

func TestParseTargetKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TargetKind
		wantErr bool
	}{
		{name: "wallet", input: "wallet", want: KindWallet},
		{name: "token", input: "token", want: KindToken},
		{name: "unknown kind", input: "contract", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargetKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTargetKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTargetKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
