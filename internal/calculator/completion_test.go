package calculator

import (
	"reflect"
	"testing"
	"time"

	"github.com/mmynk/ajo/internal/models"
)

func TestIsCycleComplete(t *testing.T) {
	active := []string{"alice", "bob", "carol"}

	tests := []struct {
		name      string
		completed []string
		want      bool
	}{
		{name: "everyone paid", completed: []string{"alice", "bob", "carol"}, want: true},
		{name: "one member missing", completed: []string{"alice", "carol"}, want: false},
		{name: "duplicate payments do not substitute", completed: []string{"alice", "alice", "bob"}, want: false},
		{name: "extra payers are ignored", completed: []string{"alice", "bob", "carol", "dave"}, want: true},
		{name: "nobody paid", completed: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCycleComplete(active, tt.completed); got != tt.want {
				t.Errorf("IsCycleComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutstandingMembers(t *testing.T) {
	got := OutstandingMembers([]string{"carol", "alice", "bob", "alice"}, []string{"bob"})
	want := []string{"alice", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OutstandingMembers() = %v, want %v", got, want)
	}
}

func TestNextDebitDateStandardCycles(t *testing.T) {
	from := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		cycleType models.CycleType
		want      time.Time
	}{
		{models.CycleDaily, time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)},
		{models.CycleWeekly, time.Date(2026, time.February, 7, 9, 0, 0, 0, time.UTC)},
		// time.AddDate normalizes Feb 31 to Mar 3.
		{models.CycleMonthly, time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.cycleType), func(t *testing.T) {
			if got := NextDebitDate(from, tt.cycleType); !got.Equal(tt.want) {
				t.Errorf("NextDebitDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
