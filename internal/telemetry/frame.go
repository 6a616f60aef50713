// internal/telemetry/frame.go
package telemetry

import (
	"errors"
	"fmt"
	"strings"

	"healthkit-link/internal/model"
)

// Wire format: "$" + heartbeat + "," + temperature + "," + weight + "#"
const (
	StartMarker    = "$"
	EndMarker      = "#"
	FieldSeparator = ","
	FieldCount     = 3
)

var (
	// ErrMalformedFraming is returned when the start or end marker is missing
	ErrMalformedFraming = errors.New("malformed framing")
	// ErrWrongFieldCount is returned when the payload does not hold exactly FieldCount fields
	ErrWrongFieldCount = errors.New("wrong field count")
)

// Decode validates one raw frame and extracts its reading.
func Decode(raw string) (model.Reading, error) {
	if !strings.HasPrefix(raw, StartMarker) || !strings.HasSuffix(raw, EndMarker) {
		return model.Reading{}, ErrMalformedFraming
	}

	payload := raw[len(StartMarker) : len(raw)-len(EndMarker)]
	fields := splitFields(payload)
	if len(fields) != FieldCount {
		return model.Reading{}, fmt.Errorf("%w: got %d, want %d", ErrWrongFieldCount, len(fields), FieldCount)
	}

	return model.Reading{
		Heartbeat:   fields[0],
		Temperature: fields[1],
		Weight:      fields[2],
	}, nil
}

// Encode renders a reading in wire format.
func Encode(r model.Reading) string {
	return StartMarker + strings.Join([]string{r.Heartbeat, r.Temperature, r.Weight}, FieldSeparator) + EndMarker
}

// splitFields splits on the separator and drops trailing empty segments
// when at least one separator was present, the way the kit's companion app
// always has: "" -> [""], "a,b," -> ["a" "b"], ",," -> [].
func splitFields(payload string) []string {
	fields := strings.Split(payload, FieldSeparator)
	if len(fields) == 1 {
		return fields
	}
	end := len(fields)
	for end > 0 && fields[end-1] == "" {
		end--
	}
	return fields[:end]
}
