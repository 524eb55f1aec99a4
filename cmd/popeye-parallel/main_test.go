package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFraction(t *testing.T) {
	n, m, err := parseFraction("2/5")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, m)

	_, _, err = parseFraction("bad")
	assert.Error(t, err)

	_, _, err = parseFraction("x/5")
	assert.Error(t, err)
}

func TestParsePartitionRange(t *testing.T) {
	a, err := parsePartitionRange("0/4/61440")
	require.NoError(t, err)
	assert.Equal(t, 0, a.Start)
	assert.Equal(t, 4, a.Stride)
	assert.Equal(t, 61440, a.Max)

	_, err = parsePartitionRange("0/4")
	assert.Error(t, err)

	_, err = parsePartitionRange("0/0/61440")
	assert.Error(t, err, "stride 0 is invalid")
}

func TestOptionalSecondsBareFlagSelectsDefault(t *testing.T) {
	var v optionalSeconds
	require.NoError(t, v.Set(""))
	assert.True(t, v.set)
	assert.Equal(t, time.Duration(0), v.duration(), "bare flag defers to the mode's own default timeout")
}

func TestOptionalSecondsExplicitValue(t *testing.T) {
	var v optionalSeconds
	require.NoError(t, v.Set("120"))
	assert.Equal(t, 120*time.Second, v.duration())
}

func TestOptionalSecondsIsBoolFlag(t *testing.T) {
	var v optionalSeconds
	assert.True(t, v.IsBoolFlag())
}

func TestOptionalSecondsRejectsGarbage(t *testing.T) {
	var v optionalSeconds
	assert.Error(t, v.Set("notanumber"))
}

func TestApplyLogLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, applyLogLevel("verbose"))
	assert.NoError(t, applyLogLevel("debug"))
}
