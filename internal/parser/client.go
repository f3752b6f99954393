package parser

import (
	"fmt"
	"strings"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
)

// clientArgs is a client command line split for the extraction rules.
type clientArgs struct {
	command string   // command token without any "=value"
	value   string   // text after "=" for keyed commands
	rest    string   // everything after the command token
	tokens  []string // whitespace tokens of rest
}

// clientRule extracts node path and additional information for one command family.
type clientRule func(r *model.Record, a clientArgs) *model.Diagnostic

// clientCommands holds the plain "--<command> ..." families.
var clientCommands = map[string]clientRule{
	"requeue": requeueRule,

	"alter":    userPathRule,
	"free-dep": userPathRule,
	"kill":     userPathRule,
	"delete":   userPathRule,
	"suspend":  userPathRule,
	"resume":   userPathRule,
	"run":      userPathRule,
	"status":   userPathRule,

	"restart":        bareRule,
	"suites":         bareRule,
	"stats":          bareRule,
	"edit_history":   bareRule,
	"zombie_get":     bareRule,
	"server_version": bareRule,
	"ping":           bareRule,
	"check_pt":       bareRule,
}

// keyedCommands holds the "--<key>=<value> ..." families, keyed on <key>.
var keyedCommands = map[string]clientRule{
	"force": forceRule,

	"file":    keyPathRule,
	"load":    keyPathRule,
	"begin":   keyPathRule,
	"replace": keyPathRule,
	"order":   keyPathRule,

	"sync_full":     bareRule,
	"news":          bareRule,
	"sync":          bareRule,
	"edit_script":   bareRule,
	"zombie_fail":   bareRule,
	"zombie_kill":   bareRule,
	"zombie_fob":    bareRule,
	"zombie_adopt":  bareRule,
	"zombie_remove": bareRule,
	"log":           bareRule,
	"halt":          bareRule,
	"terminate":     bareRule,
	"ch_register":   bareRule,
	"ch_drop":       bareRule,
}

// parseClient handles the body behind the "--" marker: "<command> <rest>".
func parseClient(r *model.Record, body string) *model.Diagnostic {
	token, rest := splitCommand(body)
	a := clientArgs{
		command: token,
		rest:    rest,
		tokens:  strings.Fields(rest),
	}

	table := clientCommands
	if key, value, ok := strings.Cut(token, "="); ok {
		a.command, a.value = key, value
		table = keyedCommands
	}

	rule, ok := table[a.command]
	if !ok {
		r.Command = token
		return diag(model.UnsupportedClientCommand, fmt.Sprintf("client command %q not supported", token))
	}
	r.Command = a.command
	return rule(r, a)
}

// requeueRule expects exactly "<option> <node_path> <user>".
func requeueRule(r *model.Record, a clientArgs) *model.Diagnostic {
	if len(a.tokens) != 3 {
		return diag(model.ClientParseError, fmt.Sprintf("requeue expects 3 tokens, got %d", len(a.tokens)))
	}
	r.NodePath = a.tokens[1]
	r.AdditionalInformation = a.tokens[0] + " " + a.tokens[2]
	return nil
}

// userPathRule takes the last token as user and the one before it as node path.
func userPathRule(r *model.Record, a clientArgs) *model.Diagnostic {
	n := len(a.tokens)
	if n < 2 {
		return diag(model.ClientParseError, fmt.Sprintf("%s expects node path and user", a.command))
	}
	r.NodePath = a.tokens[n-2]
	info := append(append([]string{}, a.tokens[:n-2]...), a.tokens[n-1])
	r.AdditionalInformation = strings.Join(info, " ")
	return nil
}

// forceRule handles "--force=<state|path> ... <node_path> <user>".
func forceRule(r *model.Record, a clientArgs) *model.Diagnostic {
	n := len(a.tokens)
	switch {
	case strings.HasPrefix(a.value, "/"):
		r.NodePath = a.value
	case n >= 2:
		r.NodePath = a.tokens[n-2]
	default:
		return diag(model.ClientParseError, "force has no node path")
	}
	r.AdditionalInformation = strings.Join(a.tokens[max(0, n-2):], " ")
	return nil
}

// keyPathRule takes the node path from "<key>=<path>" and keeps the rest.
func keyPathRule(r *model.Record, a clientArgs) *model.Diagnostic {
	r.NodePath = a.value
	r.AdditionalInformation = strings.TrimSpace(a.rest)
	return nil
}

func bareRule(*model.Record, clientArgs) *model.Diagnostic {
	return nil
}
