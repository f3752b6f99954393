package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/model"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/presenter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/situation"
)

// Renderer writes parse results, situations and reports to an output stream.
type Renderer interface {
	Render(res parser.Result) error
	RenderSituations(node string, situations []situation.Record) error
	RenderReport(r presenter.Report) error
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleStatus = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // cyan
	styleChild  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleClient = lipgloss.NewStyle().Foreground(lipgloss.Color("141")) // purple
	styleServer = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)  // green
	styleFaint  = lipgloss.NewStyle().Faint(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)

// TextRenderer prints to the terminal with command-type and outcome colors.
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer returns a Renderer that writes colorized text to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(res parser.Result) error {
	var parts []string
	if rec := res.Record; rec != nil {
		parts = append(parts,
			rec.Timestamp.Format(time.DateTime),
			styleCommandTag(rec.CommandType),
			fmt.Sprintf("%-10s", rec.Command),
			rec.NodePath,
		)
		if rec.AdditionalInformation != "" {
			parts = append(parts, styleFaint.Render(rec.AdditionalInformation))
		}
	}
	if d := res.Diagnostic; d != nil {
		style := styleWarn
		if d.Kind.Fatal() {
			style = styleError
		}
		parts = append(parts, style.Render(fmt.Sprintf("[%s] %s", d.Kind, d.Message)))
		if res.Record == nil {
			parts = append(parts, styleFaint.Render(d.Line))
		}
	}
	_, err := fmt.Fprintln(r.w, strings.Join(parts, " "))
	return err
}

func (r *TextRenderer) RenderSituations(node string, situations []situation.Record) error {
	if _, err := fmt.Fprintln(r.w, styleHeader.Render(node)); err != nil {
		return err
	}
	for _, s := range situations {
		points := make([]string, 0, len(s.TimePoints))
		for _, p := range s.TimePoints {
			points = append(points, fmt.Sprintf("%s %s", p.Status, p.Time.Format(time.TimeOnly)))
		}
		line := fmt.Sprintf("%s %s %s",
			s.Date.Format(time.DateOnly),
			styleKindTag(s.Kind),
			strings.Join(points, " → "),
		)
		if len(s.Diagnostics) > 0 {
			line += styleWarn.Render(fmt.Sprintf(" (%d out-of-sequence)", len(s.Diagnostics)))
		}
		if _, err := fmt.Fprintln(r.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) RenderReport(rep presenter.Report) error {
	var b strings.Builder
	fmt.Fprintln(&b, styleHeader.Render(fmt.Sprintf("%s time of %s days", rep.Status, rep.State)))
	for _, p := range rep.Points {
		fmt.Fprintf(&b, "%s %s\n", p.Date.Format(time.DateOnly), p.Offset)
	}
	for _, s := range rep.Skipped {
		fmt.Fprintf(&b, "%s %s\n", s.Date.Format(time.DateOnly), styleFaint.Render("skip: "+s.Reason))
	}
	fmt.Fprintf(&b, "\nMean:\n%s\n", styleOK.Render(rep.Mean.String()))
	fmt.Fprintf(&b, "\nTrim Mean (%g):\n%s\n", rep.TrimRatio, styleOK.Render(rep.TrimMean.String()))
	_, err := io.WriteString(r.w, b.String())
	return err
}

func styleCommandTag(ct model.CommandType) string {
	padded := fmt.Sprintf("%-6s", ct)
	switch ct {
	case model.CommandStatus:
		return styleStatus.Render(padded)
	case model.CommandClient:
		return styleClient.Render(padded)
	case model.CommandServer:
		return styleServer.Render(padded)
	default:
		return styleChild.Render(padded)
	}
}

func styleKindTag(kind situation.Kind) string {
	padded := fmt.Sprintf("%-10s", kind)
	switch kind {
	case situation.KindComplete:
		return styleOK.Render(padded)
	case situation.KindAborted:
		return styleError.Render(padded)
	case situation.KindIncomplete:
		return styleWarn.Render(padded)
	default:
		return styleFaint.Render(padded)
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints one JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(res parser.Result) error {
	return r.enc.Encode(res)
}

func (r *JSONRenderer) RenderSituations(node string, situations []situation.Record) error {
	for _, s := range situations {
		msg := struct {
			Node string `json:"node"`
			situation.Record
		}{Node: node, Record: s}
		if err := r.enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *JSONRenderer) RenderReport(rep presenter.Report) error {
	return r.enc.Encode(rep)
}

// New picks a renderer by format name: "json" or anything else for text.
func New(format string, w io.Writer) Renderer {
	if strings.EqualFold(format, "json") {
		return NewJSONRenderer(w)
	}
	return NewTextRenderer(w)
}
