package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name       string
		sessionID  string
		positionID string
		openedAtMs int64
		seq        int64
		wantLen    int // hash length should be 64
	}{
		{
			name:       "first trade",
			sessionID:  "5f0c6a8e-2a55-4f9b-8c3e-0d4c2b1a9e77",
			positionID: "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
			openedAtMs: 1704067234567,
			seq:        1,
			wantLen:    64,
		},
		{
			name:       "later trade",
			sessionID:  "5f0c6a8e-2a55-4f9b-8c3e-0d4c2b1a9e77",
			positionID: "X",
			openedAtMs: 1704067300000,
			seq:        42,
			wantLen:    64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.sessionID, tt.positionID, tt.openedAtMs, tt.seq)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.sessionID, tt.positionID, tt.openedAtMs, tt.seq)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("session", "position", 1000, 1)

	if base == ComputeTradeID("other_session", "position", 1000, 1) {
		t.Error("Different session should produce different hash")
	}
	if base == ComputeTradeID("session", "other_position", 1000, 1) {
		t.Error("Different position should produce different hash")
	}
	if base == ComputeTradeID("session", "position", 2000, 1) {
		t.Error("Different open time should produce different hash")
	}
	// Re-buying the same mint later in the same session must not collide.
	if base == ComputeTradeID("session", "position", 1000, 2) {
		t.Error("Different seq should produce different hash")
	}
}

func TestComputeDiscoveryID(t *testing.T) {
	a := ComputeDiscoveryID("mint", "SIMULATED", 1000)
	if len(a) != 64 {
		t.Fatalf("length = %d, want 64", len(a))
	}
	if a != ComputeDiscoveryID("mint", "SIMULATED", 1000) {
		t.Error("not deterministic")
	}
	if a == ComputeDiscoveryID("mint", "SIMULATED", 1001) {
		t.Error("re-discovery at a later time should produce a different hash")
	}
}
