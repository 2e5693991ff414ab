package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"solana-sniper/internal/domain"
)

// maxLineSize bounds a single script line.
const maxLineSize = 1 << 20

// Decode reads a JSON-lines script. Blank lines and lines starting with '#'
// are skipped. An event without "at" takes the time of the event before it,
// so file order is preserved by SortEvents. Discovery candidates default to
// source REPLAY.
func Decode(r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		events []Event
		line   int
		last   Event
	)
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidEvent, line, err)
		}
		ev.Line = line
		if err := validate(&ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.At.IsZero() {
			ev.At = last.At
		}
		ev.At = ev.At.UTC()

		events = append(events, ev)
		last = ev
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return events, nil
}

func validate(ev *Event) error {
	switch ev.Type {
	case EventTypeStart, EventTypeStop:
	case EventTypeConfig:
		if ev.Patch == nil {
			return fmt.Errorf("%w: config without patch", ErrInvalidEvent)
		}
	case EventTypeDiscovery:
		if ev.Candidate == nil || ev.Candidate.Mint == "" {
			return fmt.Errorf("%w: discovery without candidate mint", ErrInvalidEvent)
		}
		if ev.Candidate.Source == "" {
			ev.Candidate.Source = domain.SourceReplay
		}
		if !ev.Candidate.Source.IsValid() {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidEvent, ev.Candidate.Source)
		}
	case EventTypeTick:
		if ev.ID == "" {
			return fmt.Errorf("%w: tick without id", ErrInvalidEvent)
		}
	case EventTypeClose:
		if ev.ID == "" {
			return fmt.Errorf("%w: close without id", ErrInvalidEvent)
		}
		if ev.Outcome != "" && !ev.Outcome.IsValid() {
			return fmt.Errorf("%w: unknown outcome %q", ErrInvalidEvent, ev.Outcome)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}
