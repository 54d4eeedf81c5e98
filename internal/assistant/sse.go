package assistant

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one Server-Sent Event. Multiple data lines are joined with newlines.
type sseEvent struct {
	Type string
	Data string
}

// sseScanner reads Server-Sent Events separated by blank lines. Comment lines and
// fields other than "data" and "event" are skipped.
type sseScanner struct {
	reader  *bufio.Reader
	current sseEvent
	err     error
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event and returns false at EOF or on a read error.
func (s *sseScanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = sseEvent{}

	var (
		data      []string
		eventType string
		hasData   bool
	)
	emit := func() {
		s.current = sseEvent{Type: eventType, Data: strings.Join(data, "\n")}
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				emit()
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				emit()
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			field, value = line, ""
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

// Event returns the event parsed by the last successful Next.
func (s *sseScanner) Event() sseEvent {
	return s.current
}

// Err returns the read error that stopped the scanner, or nil on a clean EOF.
func (s *sseScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
