// Package progress renders archive progress updates on a terminal.
package progress

import (
	"io"

	"github.com/pcj/mobyprogress"
)

// NewProgressOutput returns an Output that redraws a single status line on
// out for each update, ending the line on the last update.
func NewProgressOutput(out io.Writer) mobyprogress.Output {
	return &progressOutput{sf: &rawProgressFormatter{}, out: out, newLines: true}
}

type progressOutput struct {
	sf       *rawProgressFormatter
	out      io.Writer
	newLines bool
}

// WriteProgress formats a progress update.
func (out *progressOutput) WriteProgress(prog mobyprogress.Progress) error {
	var formatted []byte
	if prog.Message != "" {
		formatted = out.sf.formatStatus(prog.ID, prog.Message)
	} else {
		c := counts{current: prog.Current, total: prog.Total, units: prog.Units, hide: prog.HideCounts}
		formatted = out.sf.formatProgress(prog.ID, prog.Action, c)
	}
	if _, err := out.out.Write(formatted); err != nil {
		return err
	}

	if out.newLines && prog.LastUpdate {
		_, err := out.out.Write(out.sf.formatStatus("", ""))
		return err
	}
	return nil
}
