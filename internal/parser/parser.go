package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// timestampLayout matches the bracketed "HH:MM:SS D.M.YYYY" token.
const timestampLayout = "15:04:05 2.1.2006"

// Context identifies the repository a line belongs to. It is passed into every
// Parse call, so one Parser can serve many repositories concurrently.
type Context struct {
	Owner  string
	Repo   string
	Source string // originating file path
}

// Result is the outcome of parsing one line. At least one field is set: a
// fatal diagnostic has no Record, a recoverable one may come with a partial
// Record.
type Result struct {
	Record     *model.Record     `json:"record,omitempty"`
	Diagnostic *model.Diagnostic `json:"diagnostic,omitempty"`
}

// OK reports whether the line produced a record without any diagnostic.
func (r Result) OK() bool {
	return r.Record != nil && r.Diagnostic == nil
}

// Parser converts a raw log line into a structured Record.
type Parser interface {
	Parse(pc Context, raw string) Result
}

// Options tune how partially parsed lines are reported.
type Options struct {
	// DropPartial discards the partial record of a line that carries a
	// recoverable diagnostic, leaving only the diagnostic.
	DropPartial bool
}

// ---------------------------------------------------------------------------
// Ecflow Parser
// ---------------------------------------------------------------------------

// bodyParser fills the command fields of r from the text behind a marker.
type bodyParser func(r *model.Record, body string) *model.Diagnostic

// marker is one entry of the dispatch table keyed on the body's leading text.
type marker struct {
	prefix string
	kind   model.CommandType
	parse  bodyParser
}

// markers are checked in order after the separator space following the
// timestamp. Status lines have no marker of their own; see Parse.
var markers = []marker{
	{prefix: "--", kind: model.CommandClient, parse: parseClient},
	{prefix: "chd:", kind: model.CommandChild, parse: parseChild},
	{prefix: "svr:", kind: model.CommandServer},
}

// EcflowParser handles ecFlow/SMS server log lines:
//
//	LOG:[23:12:00 9.10.2018]  queued: /suite/family/task
//	MSG:[08:17:04 29.6.2018] chd:complete /suite/family/task
//	MSG:[09:01:12 29.6.2018] --requeue force /suite/family user
//	MSG:[09:01:12 29.6.2018] svr:check_pt
//
// It holds no mutable state and is safe for concurrent use.
type EcflowParser struct {
	opts Options
}

func NewEcflowParser(opts Options) *EcflowParser {
	return &EcflowParser{opts: opts}
}

func (p *EcflowParser) Parse(pc Context, raw string) Result {
	rec := model.Record{
		Owner:  pc.Owner,
		Repo:   pc.Repo,
		Source: pc.Source,
		Raw:    raw,
	}

	colon := strings.IndexByte(raw, ':')
	if colon == -1 {
		return fatal(model.MalformedTimestamp, "log type not found", raw)
	}
	rec.LogType = raw[:colon]

	open := strings.IndexByte(raw[colon+1:], '[')
	if open == -1 {
		return fatal(model.MalformedTimestamp, "can't find date and time", raw)
	}
	open += colon + 1
	end := strings.IndexByte(raw[open:], ']')
	if end == -1 {
		return fatal(model.MalformedTimestamp, "can't find date and time", raw)
	}
	end += open

	ts, err := time.Parse(timestampLayout, strings.TrimSpace(raw[open+1:end]))
	if err != nil {
		return fatal(model.MalformedTimestamp, fmt.Sprintf("invalid timestamp %q", raw[open+1:end]), raw)
	}
	rec.Timestamp = ts

	after := raw[end+1:]
	rest := strings.TrimPrefix(after, " ")
	for _, m := range markers {
		if !strings.HasPrefix(rest, m.prefix) {
			continue
		}
		rec.CommandType = m.kind
		if m.parse == nil {
			return Result{Record: &rec}
		}
		return p.finish(rec, m.parse(&rec, rest[len(m.prefix):]))
	}

	if strings.HasPrefix(after, " ") {
		rec.CommandType = model.CommandStatus
		return p.finish(rec, parseStatus(&rec, strings.TrimLeft(after, " ")))
	}

	return fatal(model.UnrecognizedMarker, "not supported", raw)
}

// finish attaches a recoverable diagnostic to the record, honouring DropPartial.
func (p *EcflowParser) finish(rec model.Record, d *model.Diagnostic) Result {
	if d == nil {
		return Result{Record: &rec}
	}
	d.Line = rec.Raw
	if p.opts.DropPartial {
		return Result{Diagnostic: d}
	}
	return Result{Record: &rec, Diagnostic: d}
}

// ---------------------------------------------------------------------------
// Status grammar: "<command>: <node_path>[ <additional_information>]"
// ---------------------------------------------------------------------------

func parseStatus(r *model.Record, body string) *model.Diagnostic {
	end := strings.IndexByte(body, ':')
	if end == -1 {
		return diag(model.InvalidStatusCommand, "status command not found")
	}
	command := body[:end]

	switch {
	case model.ParseNodeStatus(command) != model.StatusUnknown:
		r.Command = command
		// LOG:[11:09:31 20.9.2018]  aborted: /suite/task try-no: 1 reason: trap
		r.NodePath, r.AdditionalInformation = splitFirst(body[end+1:])
		if r.NodePath == "" {
			return diag(model.InvalidStatusCommand, "status record has no node path")
		}
	case command == string(model.StatusUnknown):
		// ignored on purpose
	case strings.Contains(command, " "):
		r.Command = command
		return diag(model.InvalidStatusCommand, fmt.Sprintf("%q is not a valid status command", command))
	default:
		r.Command = command
		return diag(model.UnsupportedStatusCommand, fmt.Sprintf("status command %q not supported", command))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Child grammar: "<command> <rest>"
// ---------------------------------------------------------------------------

func parseChild(r *model.Record, body string) *model.Diagnostic {
	command, rest := splitCommand(body)
	r.Command = command

	switch command {
	case "init", "complete", "abort":
		// MSG:[12:22:53 19.10.2018] chd:abort /suite/task  trap
		r.NodePath, r.AdditionalInformation = splitFirst(rest)
		if r.NodePath == "" {
			return diag(model.ChildParseError, "child record has no node path")
		}
	case "meter", "label", "event":
		// MSG:[09:24:06 29.6.2018] chd:event transmissiondone /suite/task
		rest = strings.TrimSpace(rest)
		idx := strings.LastIndexByte(rest, ' ')
		if idx == -1 {
			return diag(model.ChildParseError, fmt.Sprintf("child %s record has no node path", command))
		}
		r.NodePath = rest[idx+1:]
		r.AdditionalInformation = strings.TrimSpace(rest[:idx])
	default:
		return diag(model.UnsupportedChildCommand, fmt.Sprintf("child command %q not supported", command))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// splitCommand cuts the leading command token from body.
func splitCommand(body string) (command, rest string) {
	command, rest, _ = strings.Cut(body, " ")
	return command, rest
}

// splitFirst returns the first space-delimited token of s and the trimmed
// remainder.
func splitFirst(s string) (head, tail string) {
	s = strings.TrimLeft(s, " ")
	head, tail, _ = strings.Cut(s, " ")
	return strings.TrimSpace(head), strings.TrimSpace(tail)
}

func diag(kind model.DiagnosticKind, msg string) *model.Diagnostic {
	return &model.Diagnostic{Kind: kind, Message: msg}
}

func fatal(kind model.DiagnosticKind, msg, raw string) Result {
	return Result{Diagnostic: &model.Diagnostic{Kind: kind, Message: msg, Line: raw}}
}
