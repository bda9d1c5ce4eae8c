package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCutoff_Date(t *testing.T) {
	got := ParseCutoff("2025-01-01")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestParseCutoff_RFC3339Z(t *testing.T) {
	got := ParseCutoff("2025-08-07T00:00:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseCutoff_Empty(t *testing.T) {
	assert.Nil(t, ParseCutoff(""))
	assert.Nil(t, ParseCutoff("   "))
}

func TestParseCutoff_Unparseable(t *testing.T) {
	assert.Nil(t, ParseCutoff("not-a-date"))
}
