package streammerge

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DecodeStream incrementally decodes a server-sent answer stream, stripping
// the `data:` frame prefix and invoking onDelta once per text increment.
// It returns nil on the `done` event (or a bare [DONE] marker) and an error
// on the `error` event or a broken transport. An onDelta error aborts the
// decode and is returned unchanged.
func DecodeStream(r io.Reader, onDelta func(delta string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			event = ""
			continue
		}
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")

		switch event {
		case "done":
			return nil
		case "error":
			return fmt.Errorf("stream error: %s", payload)
		default:
			if payload == "[DONE]" {
				return nil
			}
			// The server escapes newlines to keep each increment on one
			// data line; undo that here.
			if err := onDelta(strings.ReplaceAll(payload, "\\n", "\n")); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream failed: %w", err)
	}
	return nil
}
