package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordKnownKinds(t *testing.T) {
	cases := []struct {
		frame string
		kind  Kind
		body  string
	}{
		{"@@READY", KindReady, ""},
		{"@@FINISHED", KindFinished, ""},
		{"@@TEXT:  1.e2-e4 e7-e5 #", KindText, "  1.e2-e4 e7-e5 #"},
		{"@@PROGRESS:1+0:3", KindProgress, "1+0:3"},
		{"@@COMBO:30212", KindCombo, "30212"},
		{"@@ERROR:bad thing", KindError, "bad thing"},
	}
	for _, c := range cases {
		rec := ParseRecord(c.frame)
		assert.Equal(t, c.kind, rec.Kind, c.frame)
		assert.Equal(t, c.body, rec.Body, c.frame)
	}
}

// Decoding contract: tolerates leading noise before "@@".
func TestParseRecordLeadingNoise(t *testing.T) {
	rec := ParseRecord("XYZ@@PROGRESS:2+3:100")
	assert.Equal(t, KindProgress, rec.Kind)
	assert.Equal(t, "2+3:100", rec.Body)
}

func TestParseRecordOpaque(t *testing.T) {
	rec := ParseRecord("just some text")
	assert.Equal(t, KindUnknown, rec.Kind)
	assert.Equal(t, "just some text", rec.Opaque)
}

func TestParseRecordUnknownKindReportedAsParsed(t *testing.T) {
	rec := ParseRecord("@@FUTURE_FEATURE:stuff")
	assert.Equal(t, Kind("FUTURE_FEATURE"), rec.Kind)
	// Caller is responsible for dropping unrecognized kinds; the decoder
	// itself just reports what it parsed.
}

func TestParseProgress(t *testing.T) {
	p, err := ParseProgress("1+0:3")
	require.NoError(t, err)
	assert.Equal(t, Progress{M: 1, K: 0, Positions: 3}, p)

	_, err = ParseProgress("bad")
	assert.Error(t, err)
	_, err = ParseProgress("x+0:3")
	assert.Error(t, err)
	_, err = ParseProgress("1+x:3")
	assert.Error(t, err)
	_, err = ParseProgress("1+0:x")
	assert.Error(t, err)
}

func TestDepthEncoding(t *testing.T) {
	assert.Equal(t, 100, Depth(1, 0))
	assert.Equal(t, 114, Depth(1, 14))
	assert.Equal(t, 0, Depth(0, 0))
}

// R1: encoding then decoding a record with any newline-free body
// reproduces it byte for byte.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		kind Kind
		body string
	}{
		{KindText, "  1.e2-e4 e7-e5 #"},
		{KindProgress, "1+0:3"},
		{KindCombo, "30212"},
		{KindReady, ""},
		{KindHeartbeat, "5"},
	}
	for _, c := range cases {
		line := Encode(c.kind, c.body)
		rec := ParseRecord(line)
		assert.Equal(t, c.kind, rec.Kind, line)
		assert.Equal(t, c.body, rec.Body, line)
	}
}
