package progress

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/morikuni/aec"
)

const streamNewline = "\r\n"

type rawProgressFormatter struct{}

func (sf *rawProgressFormatter) formatStatus(id, message string) []byte {
	if id == "" {
		return []byte(message + streamNewline)
	}
	return []byte(id + ": " + message + streamNewline)
}

func (sf *rawProgressFormatter) formatProgress(id, action string, c counts) []byte {
	var b bytes.Buffer
	fmt.Fprint(&b, aec.EraseLine(aec.EraseModes.All))
	b.WriteByte('\r')
	if id != "" {
		b.WriteString(id + ": ")
	}
	b.WriteString(action)
	if s := c.String(); s != "" {
		b.WriteString(" " + s)
	}
	b.WriteByte('\r')
	return b.Bytes()
}

// counts renders "current/total units".
type counts struct {
	current int64
	total   int64
	units   string
	hide    bool
}

func (c counts) String() string {
	if c.hide || (c.current <= 0 && c.total <= 0) {
		return ""
	}
	s := strconv.FormatInt(c.current, 10)
	if c.total > 0 {
		s += "/" + strconv.FormatInt(c.total, 10)
	}
	if c.units != "" {
		s += " " + c.units
	}
	return s
}
