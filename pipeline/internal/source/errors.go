package source

import "fmt"

// FormatError reports historical data that does not match the fixed schema.
type FormatError struct {
	Source string // file name or logical source
	Line   int    // 1-based; 0 when not tied to a line
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("source %s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("source %s: %s", e.Source, e.Reason)
}

func formatErr(src string, line int, format string, args ...any) error {
	return &FormatError{Source: src, Line: line, Reason: fmt.Sprintf(format, args...)}
}
