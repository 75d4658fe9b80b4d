package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid(t *testing.T) {
	g, err := NewGrid("08:00", "20:00", 30)
	require.NoError(t, err)

	all := g.Slots()
	assert.Len(t, all, 24)
	assert.Equal(t, "08:00", all[0])
	assert.Equal(t, "19:30", all[len(all)-1])
	assert.Equal(t, "20:00", g.Closing())
	assert.False(t, g.Contains("20:00"))
	assert.False(t, g.Contains("08:15"))
}

func TestNewGridErrors(t *testing.T) {
	testCases := []struct {
		name    string
		opening string
		closing string
		step    int
	}{
		{"zero step", "08:00", "20:00", 0},
		{"bad opening", "8am", "20:00", 30},
		{"bad closing", "08:00", "25:00", 30},
		{"closing before opening", "20:00", "08:00", 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGrid(tc.opening, tc.closing, tc.step)
			assert.Error(t, err)
		})
	}
}

func TestRange(t *testing.T) {
	g, err := NewGrid("08:00", "20:00", 30)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		start   string
		end     string
		want    []string
		wantErr bool
	}{
		{"single slot", "09:00", "09:30", []string{"09:00"}, false},
		{"two hours", "10:00", "12:00", []string{"10:00", "10:30", "11:00", "11:30"}, false},
		{"until closing", "19:00", "20:00", []string{"19:00", "19:30"}, false},
		{"end equals start", "09:00", "09:00", nil, true},
		{"end before start", "10:00", "09:00", nil, true},
		{"unknown start", "07:30", "09:00", nil, true},
		{"misaligned end", "09:00", "09:45", nil, true},
		{"start at closing", "20:00", "20:30", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Range(tc.start, tc.end)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEnd(t *testing.T) {
	g, err := NewGrid("08:00", "20:00", 30)
	require.NoError(t, err)

	end, ok := g.End("09:00")
	assert.True(t, ok)
	assert.Equal(t, "09:30", end)

	end, ok = g.End("19:30")
	assert.True(t, ok)
	assert.Equal(t, "20:00", end)

	_, ok = g.End("21:00")
	assert.False(t, ok)
}
