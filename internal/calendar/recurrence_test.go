package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandRecurrence(t *testing.T) {
	start, end := at(0, 9, 0), at(0, 10, 0)

	tests := []struct {
		name      string
		rule      string
		limit     int
		wantCount int
		wantErr   bool
	}{
		{"no rule", "", 0, 1, false},
		{"weekly count", "FREQ=WEEKLY;COUNT=4", 0, 4, false},
		{"prefixed", "RRULE:FREQ=DAILY;COUNT=2", 0, 2, false},
		{"until", "FREQ=DAILY;UNTIL=20250314T090000Z", 0, 5, false},
		{"unbounded", "FREQ=DAILY", 10, 0, true},
		{"garbage", "not a rule", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandRecurrence(tt.rule, start, end, tt.limit)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, tt.wantCount)
			for _, occ := range got {
				assert.Equal(t, end.Sub(start), occ.End.Sub(occ.Start))
			}
			assert.True(t, got[0].Start.Equal(start))
		})
	}
}
