package session

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// headerDelimiter separates the TOML frontmatter from the markdown body.
const headerDelimiter = "+++"

// ErrNoHeader is returned when a file has no delimited frontmatter header.
var ErrNoHeader = errors.New("session file has no structured header")

// MalformedHeaderError is returned when the frontmatter exists but cannot
// be parsed as TOML.
type MalformedHeaderError struct {
	Detail string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed session header: %s", e.Detail)
}

// header is the on-disk frontmatter shape. All fields are optional; absent
// fields extract as unknown rather than erroring.
type header struct {
	Session        string            `toml:"session"`
	StepsCompleted []int             `toml:"steps_completed"`
	CurrentStep    int               `toml:"current_step"`
	TotalSteps     int               `toml:"total_steps"`
	Meta           map[string]string `toml:"meta"`
}

// Extract reads a session file and parses its header into a Record.
func Extract(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	rec, err := ExtractBytes(data)
	if err != nil {
		return nil, err
	}
	rec.Path = path
	return rec, nil
}

// ExtractBytes parses raw session file bytes into a Record. Pure: no I/O.
// The record's Path is left empty for the caller to fill in.
func ExtractBytes(data []byte) (*Record, error) {
	raw, err := frontmatter(data)
	if err != nil {
		return nil, err
	}

	var h header
	if err := toml.Unmarshal(raw, &h); err != nil {
		return nil, &MalformedHeaderError{Detail: err.Error()}
	}

	meta := h.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	if h.Session != "" {
		meta["session"] = h.Session
	}

	return &Record{
		StepsCompleted: h.StepsCompleted,
		CurrentStep:    h.CurrentStep,
		TotalSteps:     h.TotalSteps,
		Meta:           meta,
		ExtractedAt:    time.Now(),
	}, nil
}

// frontmatter returns the bytes between the leading delimiter pair. The
// opening delimiter must be the first non-blank line of the file.
func frontmatter(data []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	opened := false
	var buf bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if !opened {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.TrimSpace(line) != headerDelimiter {
				return nil, ErrNoHeader
			}
			opened = true
			continue
		}
		if strings.TrimSpace(line) == headerDelimiter {
			return buf.Bytes(), nil
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, &MalformedHeaderError{Detail: err.Error()}
	}
	if opened {
		return nil, &MalformedHeaderError{Detail: "unterminated header delimiter"}
	}
	return nil, ErrNoHeader
}
