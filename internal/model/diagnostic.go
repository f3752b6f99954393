package model

import "fmt"

// DiagnosticKind classifies a problem found while parsing a line or feeding
// an automaton.
type DiagnosticKind string

const (
	MalformedTimestamp       DiagnosticKind = "malformed_timestamp"
	UnrecognizedMarker       DiagnosticKind = "unrecognized_marker"
	InvalidStatusCommand     DiagnosticKind = "invalid_status_command"
	UnsupportedStatusCommand DiagnosticKind = "unsupported_status_command"
	UnsupportedChildCommand  DiagnosticKind = "unsupported_child_command"
	ChildParseError          DiagnosticKind = "child_parse_error"
	UnsupportedClientCommand DiagnosticKind = "unsupported_client_command"
	ClientParseError         DiagnosticKind = "client_parse_error"
	AutomatonOutOfSequence   DiagnosticKind = "automaton_out_of_sequence"
)

// Fatal reports whether the kind drops the whole line.
func (k DiagnosticKind) Fatal() bool {
	return k == MalformedTimestamp || k == UnrecognizedMarker
}

// Diagnostic describes a line-scoped or event-scoped problem. It is returned
// as a value so callers decide how to report it.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Line    string         `json:"line,omitempty"`
}

func (d *Diagnostic) Error() string {
	if d.Line == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s => %s", d.Kind, d.Message, d.Line)
}

// Is matches another *Diagnostic by kind, so errors.Is(err, &Diagnostic{Kind: k}) works.
func (d *Diagnostic) Is(target error) bool {
	t, ok := target.(*Diagnostic)
	return ok && t.Kind == d.Kind
}
