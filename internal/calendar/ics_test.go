package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICSRoundTrip(t *testing.T) {
	events := []Event{
		{
			ID:        "e1",
			Title:     "Planning",
			Location:  "Office",
			Start:     at(0, 9, 0),
			End:       at(0, 10, 0),
			Tags:      []string{"meeting", "work"},
			Status:    StatusConfirmed,
			CreatedAt: fixedNow,
			UpdatedAt: fixedNow,
		},
		{
			ID:        "e2",
			Title:     "Dentist",
			Start:     at(1, 15, 0),
			End:       at(1, 16, 0),
			Tags:      []string{},
			Status:    StatusTentative,
			CreatedAt: fixedNow,
			UpdatedAt: fixedNow,
		},
	}

	doc := ExportICS(events)
	assert.Contains(t, doc, "BEGIN:VCALENDAR")
	assert.Contains(t, doc, "CATEGORIES:meeting,work")
	assert.Contains(t, doc, "STATUS:TENTATIVE")

	drafts, warnings, err := ImportICS(strings.NewReader(doc), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, drafts, 2)

	assert.Equal(t, "Planning", drafts[0].Title)
	assert.Equal(t, "Office", drafts[0].Location)
	assert.True(t, drafts[0].Start.Equal(at(0, 9, 0)))
	assert.True(t, drafts[0].End.Equal(at(0, 10, 0)))
	assert.Equal(t, []string{"meeting", "work"}, drafts[0].Tags)
	assert.Equal(t, StatusConfirmed, drafts[0].Status)
	assert.Equal(t, "ics", drafts[0].Source)

	assert.Equal(t, "Dentist", drafts[1].Title)
	assert.Equal(t, StatusTentative, drafts[1].Status)
}

func TestImportICS_Invalid(t *testing.T) {
	_, _, err := ImportICS(strings.NewReader("not a calendar"), time.UTC)
	assert.Error(t, err)
}
