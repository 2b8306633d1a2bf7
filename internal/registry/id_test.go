package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMeetingID(t *testing.T) {
	id, err := GenerateMeetingID(func(string) bool { return false })
	require.NoError(t, err)
	assert.True(t, ValidMeetingID(id), "generated id %q should be valid", id)
}

func TestGenerateMeetingIDSkipsTaken(t *testing.T) {
	var first string
	calls := 0
	id, err := GenerateMeetingID(func(candidate string) bool {
		calls++
		if calls == 1 {
			first = candidate
			return true
		}
		return false
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, id)
	assert.True(t, calls >= 2)
}

func TestGenerateMeetingIDExhaustion(t *testing.T) {
	_, err := GenerateMeetingID(func(string) bool { return true })
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
}

func TestValidMeetingID(t *testing.T) {
	assert.True(t, ValidMeetingID("123456789"))
	assert.True(t, ValidMeetingID("999999999"))
	assert.False(t, ValidMeetingID("099999999"), "leading zero")
	assert.False(t, ValidMeetingID("12345678"), "too short")
	assert.False(t, ValidMeetingID("1234567890"), "too long")
	assert.False(t, ValidMeetingID("12345678a"), "non-digit")
	assert.False(t, ValidMeetingID(""))
}
