package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	t.Parallel()

	id, err := parseUserID("123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789012345678), id)

	_, err = parseUserID("")
	require.ErrorIs(t, err, ErrUserIDRequired)

	_, err = parseUserID("0")
	require.ErrorIs(t, err, ErrInvalidUserID)

	_, err = parseUserID("bob")
	require.ErrorIs(t, err, ErrInvalidUserID)
}
