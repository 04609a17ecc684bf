package calculator

import (
	"errors"
	"fmt"
	"testing"
)

func TestDetermineRecipient(t *testing.T) {
	active := []RotationMember{
		{MemberID: "alice", Position: 1},
		{MemberID: "bob", Position: 2},
		{MemberID: "carol", Position: 3},
	}

	tests := []struct {
		name    string
		cycle   int
		order   []string
		active  []RotationMember
		want    string
		wantErr error
	}{
		{name: "position based first cycle", cycle: 1, active: active, want: "alice"},
		{name: "position based third cycle", cycle: 3, active: active, want: "carol"},
		{name: "position beyond members", cycle: 4, active: active, wantErr: ErrNoRecipient},
		{name: "withdrawal order overrides position", cycle: 1, order: []string{"carol", "alice", "bob"}, active: active, want: "carol"},
		{name: "withdrawal order wraps", cycle: 5, order: []string{"carol", "alice", "bob"}, active: active, want: "alice"},
		{
			name:    "removed member in withdrawal order blocks payout",
			cycle:   2,
			order:   []string{"carol", "dave", "bob"},
			active:  active,
			wantErr: ErrInactiveRecipient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetermineRecipient(tt.cycle, tt.order, tt.active)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DetermineRecipient() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetermineRecipient() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetermineRecipient() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("zero cycle is rejected", func(t *testing.T) {
		if _, err := DetermineRecipient(0, nil, active); err == nil {
			t.Error("expected error for cycle 0")
		}
	})
}

func TestDetermineRecipientFollowsWithdrawalOrder(t *testing.T) {
	for n := 1; n <= 7; n++ {
		order := make([]string, n)
		members := make([]RotationMember, n)
		for i := range order {
			order[i] = fmt.Sprintf("m%d", n-i)
			members[i] = RotationMember{MemberID: fmt.Sprintf("m%d", i+1), Position: i + 1}
		}
		for cycle := 1; cycle <= 3*n+1; cycle++ {
			got, err := DetermineRecipient(cycle, order, members)
			if err != nil {
				t.Fatalf("n=%d cycle=%d: %v", n, cycle, err)
			}
			if want := order[(cycle-1)%n]; got != want {
				t.Fatalf("n=%d cycle=%d: got %s, want %s", n, cycle, got, want)
			}
		}
	}
}
