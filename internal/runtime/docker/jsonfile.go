package docker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crane-app/crane/internal/runtime"
)

// jsonFileEntry is one line written by the json-file log driver.
type jsonFileEntry struct {
	Log    string `json:"log"`
	Stream string `json:"stream"`
	Time   string `json:"time"`
}

// jsonFileStream is a json-file log on disk. Seeking and reading go straight
// to the file; DecodeLine unwraps each envelope for display.
type jsonFileStream struct {
	*runtime.FileStream
}

var _ runtime.LineDecoder = (*jsonFileStream)(nil)

// DecodeLine returns the log text of one envelope. stderr lines are prefixed
// so they stay distinguishable once merged with stdout.
func (s *jsonFileStream) DecodeLine(raw string) (string, error) {
	var entry jsonFileEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return raw, fmt.Errorf("decode json-file entry: %w", err)
	}
	text := strings.TrimRight(entry.Log, "\r\n")
	if entry.Stream == "stderr" {
		return "[stderr] " + text, nil
	}
	return text, nil
}
