package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize is the maximum size for a single message line (1MB).
const MaxMessageSize = 1024 * 1024

// reader splits the input stream into messages, one per line.
type reader struct {
	scanner *bufio.Scanner
}

func newReader(r io.Reader) *reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), MaxMessageSize)
	return &reader{scanner: s}
}

// next returns the next message. A line that is not valid JSON yields a
// nil message with the parse error; io.EOF ends the stream.
func (r *reader) next() (*Message, []byte, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		raw := append([]byte(nil), line...)
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, raw, fmt.Errorf("error parsing JSON-RPC message: %w", err)
		}
		return &msg, raw, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading input: %w", err)
	}
	return nil, nil, io.EOF
}

// writeMessage writes a JSON-RPC message to the output stream. Writes from
// concurrent handlers are serialized.
func (s *Server) writeMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling JSON-RPC message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.logger.Debug("Sending message", "raw", string(data))
	if _, err := fmt.Fprintf(s.stdout, "%s\n", data); err != nil {
		return fmt.Errorf("error writing to stdout: %w", err)
	}
	return nil
}
