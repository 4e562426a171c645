// Package replay reads recorded storefront event streams and runs them back
// through the decision engine.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/lazypower/nudge/internal/event"
)

const maxLine = 1024 * 1024

// record is one JSONL line. Timestamps may be RFC 3339 strings or Unix
// milliseconds.
type record struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"event_type"`
	Payload   map[string]any  `json:"payload"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ReadFile reads a JSONL event file.
func ReadFile(path string) ([]event.Event, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses one event per line, in order. Blank lines are ignored; lines
// that fail to parse or lack a session or type are skipped and counted.
func Read(r io.Reader) (events []event.Event, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLine), maxLine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := parseLine(line)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan events: %w", err)
	}
	return events, skipped, nil
}

var errIncomplete = errors.New("event missing session_id or event_type")

func parseLine(line []byte) (event.Event, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return event.Event{}, err
	}
	if rec.SessionID == "" || rec.Type == "" {
		return event.Event{}, errIncomplete
	}
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		SessionID: rec.SessionID,
		Type:      rec.Type,
		Payload:   rec.Payload,
		Timestamp: ts,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
		}
		ms = int64(f)
	}
	return time.UnixMilli(ms).UTC(), nil
}
