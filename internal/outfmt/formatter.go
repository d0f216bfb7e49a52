package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sinkingmoon/bubbles/internal/response"
)

// Formatter handles output formatting for commands.
type Formatter struct {
	ctx       context.Context
	out       io.Writer
	errOut    io.Writer
	tabWriter *tabwriter.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{
		ctx:       ctx,
		out:       out,
		errOut:    errOut,
		tabWriter: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
}

// Output writes a response value honoring the context's mode, query and
// template.
func (f *Formatter) Output(v response.Value) error {
	if tmpl := GetTemplate(f.ctx); tmpl != "" {
		filtered, err := v.Query(GetQuery(f.ctx))
		if err != nil {
			return err
		}
		return WriteTemplate(f.out, filtered, tmpl)
	}
	return WriteValue(f.out, v, ModeFromContext(f.ctx), GetQuery(f.ctx), IsCompact(f.ctx))
}

// OutputAny writes structured command output, e.g. an endpoint listing, as
// JSON in JSON modes. It reports false in text mode so callers can print a
// table instead.
func (f *Formatter) OutputAny(data any) (bool, error) {
	if !IsJSON(f.ctx) {
		return false, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return true, err
	}
	v, err := response.Parse(raw)
	if err != nil {
		return true, err
	}
	return true, f.Output(v)
}

// StartTable writes table headers. Returns true if in text mode.
func (f *Formatter) StartTable(headers []string) bool {
	if IsJSON(f.ctx) {
		return false
	}

	for i, h := range headers {
		if i > 0 {
			_, _ = fmt.Fprint(f.tabWriter, "\t")
		}
		_, _ = fmt.Fprint(f.tabWriter, h)
	}
	_, _ = fmt.Fprintln(f.tabWriter)
	return true
}

// Row writes a single row to the table.
func (f *Formatter) Row(columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(f.tabWriter, "\t")
		}
		_, _ = fmt.Fprint(f.tabWriter, col)
	}
	_, _ = fmt.Fprintln(f.tabWriter)
}

// EndTable flushes the table output.
func (f *Formatter) EndTable() error {
	return f.tabWriter.Flush()
}

// Empty writes a message to stderr indicating no results.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}
