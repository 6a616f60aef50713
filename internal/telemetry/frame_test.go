package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthkit-link/internal/model"
)

func TestDecodeValidFrame(t *testing.T) {
	reading, err := Decode("$72,36.5,68.2#")
	require.NoError(t, err)
	assert.Equal(t, model.Reading{Heartbeat: "72", Temperature: "36.5", Weight: "68.2"}, reading)
}

func TestDecodeKeepsFieldsVerbatim(t *testing.T) {
	reading, err := Decode("$ 72,abc, 68.2 #")
	require.NoError(t, err)
	assert.Equal(t, " 72", reading.Heartbeat)
	assert.Equal(t, "abc", reading.Temperature)
	assert.Equal(t, " 68.2 ", reading.Weight)
}

func TestDecodeMalformedFraming(t *testing.T) {
	cases := []string{
		"",
		"$",
		"#",
		"72,36.5,68.2",
		"$72,36.5,68.2",
		"72,36.5,68.2#",
		"#72,36.5,68.2$",
		"$72,36.5,68.2#\n",
		" $72,36.5,68.2#",
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			reading, err := Decode(raw)
			assert.ErrorIs(t, err, ErrMalformedFraming)
			assert.NotErrorIs(t, err, ErrWrongFieldCount)
			assert.Equal(t, model.Reading{}, reading)
		})
	}
}

func TestDecodeWrongFieldCount(t *testing.T) {
	cases := map[string]string{
		"empty payload": "$#",
		"one field":     "$72#",
		"two fields":    "$72,36.5#",
		"four fields":   "$72,36.5,68.2,1#",
		"five fields":   "$1,2,3,4,5#",
		"only commas":   "$,,#",
		"trailing gap":  "$72,36.5,#",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			reading, err := Decode(raw)
			assert.ErrorIs(t, err, ErrWrongFieldCount)
			assert.NotErrorIs(t, err, ErrMalformedFraming)
			assert.Equal(t, model.Reading{}, reading)
		})
	}
}

func TestDecodeEmptyLeadingFields(t *testing.T) {
	reading, err := Decode("$,,68.2#")
	require.NoError(t, err)
	assert.Equal(t, model.Reading{Weight: "68.2"}, reading)
}

func TestDecodeDropsTrailingEmptySegments(t *testing.T) {
	reading, err := Decode("$72,36.5,68.2,#")
	require.NoError(t, err)
	assert.Equal(t, "68.2", reading.Weight)
}

func TestEncodeWireFormat(t *testing.T) {
	raw := Encode(model.Reading{Heartbeat: "80", Temperature: "37.0", Weight: "70.0"})
	assert.Equal(t, "$80,37.0,70.0#", raw)

	reading, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "80", reading.Heartbeat)
}

func TestMarkers(t *testing.T) {
	assert.Equal(t, "$", StartMarker)
	assert.Equal(t, "#", EndMarker)
	assert.Equal(t, ",", FieldSeparator)
}
