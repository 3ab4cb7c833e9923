package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

func TestValidateDate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2999-01-01", true},
		{"2026-10-17", true},
		{" 2026-10-17\n", false},
		{" 2999-01-01 ", false},
		{"2999-01-01\n", false},
		{"2026-10-16", false},
		{"2020-01-01", false},
		{"2026-1-17", false},
		{"17.10.2026", false},
		{"2026-02-30", false},
		{"2026-10-17T10:00", false},
		{"", false},
		{"tomorrow", false},
	}
	for _, tt := range tests {
		d, ok := ValidateDate(tt.in, now)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if ok {
			assert.True(t, d.After(now), "input %q", tt.in)
		}
	}
}

func TestValidateTime(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"09:00", true},
		{"10:00", true},
		{"14:30", true},
		{"17:00", true},
		{"08:59", false},
		{"17:01", false},
		{"9:00", false},
		{"24:00", false},
		{"12:60", false},
		{"12:00:00", false},
		{"noon", false},
		{" 10:00", false},
		{"10:00 ", false},
		{"", false},
	}
	for _, tt := range tests {
		_, ok := ValidateTime(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestValidateTimeValue(t *testing.T) {
	got, ok := ValidateTime("14:30")
	assert.True(t, ok)
	assert.Equal(t, "14:30", got.Format("15:04"))
}
