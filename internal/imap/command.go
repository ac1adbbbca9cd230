// Package imap implements the fake IMAP4rev1 session engine: a scriptable
// NotAuthenticated/Authenticated/Selected state machine with SELECT/LIST/
// STATUS/FETCH returning fixed, in-memory fixture data, plus STARTTLS,
// COMPRESS, AUTHENTICATE/LOGIN credential capture, and IDLE. Grounded on
// original_source's imap/mod.rs and imap/responses.rs.
package imap

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/fhms-its/fakemaild/internal/wire"
)

// Command is one parsed tagged IMAP command line.
type Command struct {
	Tag  string
	Name string
	Args []string
}

var literalSuffix = regexp.MustCompile(`\{(\d+)\+?\}$`)

// ParseCommand is a framer.ParseFunc[Command] for tagged IMAP command
// lines. It understands a single trailing curly-brace literal
// announcement per command line (e.g. "a1 LOGIN {5}\r\n" followed by 5
// raw octets and the rest of the line) -- enough for the LOGIN/
// AUTHENTICATE/APPEND literal arguments real clients and test suites
// actually send. A command line carrying more than one literal is not
// supported.
// ParseCommand never produces a complete Command with an empty name: a
// line that doesn't carry at least a tag and a command keyword cannot be
// parsed against the tagged-command grammar and reports wire.Fail, which
// the handler answers with original_source's lax "<tag> OK keep going."
// reply instead of a command dispatch.
func ParseCommand(buf []byte) (int, Command, wire.Outcome) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return 0, Command{}, wire.Incomplete
	}
	firstLine := strings.TrimSuffix(string(buf[:idx]), "\r")
	consumed := idx + 1

	m := literalSuffix.FindStringSubmatch(firstLine)
	if m == nil {
		return finishCommand(wire.SplitArgs(firstLine), consumed)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return finishCommand(wire.SplitArgs(firstLine), consumed)
	}
	if len(buf) < consumed+n {
		return 0, Command{}, wire.Incomplete
	}
	literal := string(buf[consumed : consumed+n])
	rest := buf[consumed+n:]

	nlIdx := bytes.IndexByte(rest, '\n')
	if nlIdx < 0 {
		return 0, Command{}, wire.Incomplete
	}
	restLine := strings.TrimSuffix(string(rest[:nlIdx]), "\r")
	consumed = consumed + n + nlIdx + 1

	prefix := firstLine[:len(firstLine)-len(m[0])]
	fields := wire.SplitArgs(prefix)
	fields = append(fields, literal)
	fields = append(fields, wire.SplitArgs(restLine)...)
	return finishCommand(fields, consumed)
}

// finishCommand builds a Command from fields if it carries at least a tag
// and a command name, else reports wire.Fail.
func finishCommand(fields []string, consumed int) (int, Command, wire.Outcome) {
	if len(fields) < 2 {
		return 0, Command{}, wire.Fail
	}
	return consumed, buildCommand(fields), wire.OK
}

func buildCommand(fields []string) Command {
	return Command{
		Tag:  fields[0],
		Name: strings.ToUpper(fields[1]),
		Args: fields[2:],
	}
}
