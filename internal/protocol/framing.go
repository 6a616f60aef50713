// internal/protocol/framing.go
package protocol

import (
	"bufio"
	"bytes"
	"io"

	"healthkit-link/internal/telemetry"
)

// maxFrameSize bounds a single raw frame read from a stream. Longer runs
// without a boundary are handed on as one raw frame.
const maxFrameSize = 4096

// frameBoundaries end a pending raw frame: the end marker (kept), a line
// break, or the start marker of the next frame (both left out)
const frameBoundaries = telemetry.EndMarker + "\r\n" + telemetry.StartMarker

// ScanFrames is a bufio.SplitFunc that cuts a kit byte stream into raw
// frames. A token ends right after the end marker, before a line break, or
// before a start marker that opens the next frame, so a frame that lost its
// end marker is delivered on its own and the decoder rejects it. Line
// breaks between frames are skipped.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	skip := 0
	for skip < len(data) && (data[skip] == '\r' || data[skip] == '\n') {
		skip++
	}
	if skip == len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return skip, nil, nil
	}

	pending := data[skip:]
	if pending[0] == telemetry.EndMarker[0] {
		return skip + 1, pending[:1], nil
	}

	if i := bytes.IndexAny(pending[1:], frameBoundaries); i >= 0 {
		end := i + 1
		if pending[end] == telemetry.EndMarker[0] {
			return skip + end + 1, pending[:end+1], nil
		}
		return skip + end, pending[:end], nil
	}

	if atEOF || len(data) >= maxFrameSize {
		return len(data), pending, nil
	}
	return skip, nil, nil
}

// newFrameScanner wraps a stream with the kit framing
func newFrameScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), maxFrameSize)
	scanner.Split(ScanFrames)
	return scanner
}
