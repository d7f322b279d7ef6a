package stream

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const dataPrefix = "data:"

// ExtractLines splits buf on newlines. The trailing text after the last
// newline is returned as remainder and must be prepended to the next read.
func ExtractLines(buf string) (lines []string, remainder string) {
	for {
		idx := strings.IndexByte(buf, '\n')
		if idx == -1 {
			return lines, buf
		}
		lines = append(lines, strings.TrimRight(buf[:idx], "\r"))
		buf = buf[idx+1:]
	}
}

// LineBuffer carries partial lines across reads. It belongs to a single
// read loop.
type LineBuffer struct {
	pending string
}

func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// Append adds a raw fragment and returns the lines it completed.
func (b *LineBuffer) Append(chunk []byte) []string {
	lines, rest := ExtractLines(b.pending + string(chunk))
	b.pending = rest
	return lines
}

// Pending returns the incomplete trailing line, if any.
func (b *LineBuffer) Pending() string {
	return b.pending
}

// DecodeFrame turns one line into a Frame. Non-data lines, payloads with an
// unknown type and malformed payloads all yield nil; the last are logged.
func DecodeFrame(line string) Frame {
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}
	data := strings.TrimSpace(line[len(dataPrefix):])

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("skipping malformed frame")
		return nil
	}

	raw := json.RawMessage(data)
	switch env.Type {
	case TypeMessage:
		return MessageFrame{Data: raw}
	case TypeSession:
		return SessionFrame{Data: raw}
	case TypeThread:
		return ThreadFrame{Data: raw}
	case TypeError:
		return ErrorFrame{Data: raw}
	default:
		log.Debug().Str("type", env.Type).Msg("ignoring frame with unknown type")
		return nil
	}
}
