package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_Unique(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestParseDatasetName(t *testing.T) {
	name, err := ParseDatasetName("  scan-1 ")
	require.NoError(t, err)
	assert.Equal(t, DatasetName("scan-1"), name)

	for _, bad := range []string{"", "   ", ".", "..", "a/b", `a\b`} {
		_, err := ParseDatasetName(bad)
		assert.True(t, IsInputError(err), "name %q", bad)
	}
}
