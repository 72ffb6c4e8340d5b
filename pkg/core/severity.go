package core

import "strings"

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a string to a Severity value.
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityWarning, false
	}
}

// Diagnostic is a non-fatal finding recorded by a best-effort operation.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name,omitempty"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

// NewDiagnostic builds a diagnostic from an error.
func NewDiagnostic(sev Severity, name string, err error) Diagnostic {
	return Diagnostic{Severity: sev, Name: name, Message: err.Error(), Err: err}
}
