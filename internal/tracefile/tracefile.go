// Package tracefile reads CMake execution logs produced with --trace or
// --trace-expand by a timestamp-patched CMake and turns them into a
// sequence of call events.
package tracefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/getsentry/cmakestat/internal/calltree"
)

var (
	lineRe = regexp.MustCompile(
		`^\((?P<timestamp>[^)]*)\)\s*` +
			`(\((?P<frame>[^)]*)\)\s*)?` +
			`(?P<file>[^(]*)\((?P<line>[^)]*)\):\s*` +
			`(?P<code>.*)$`)

	// In cmake 3.10 at least `else` and `elseif` commands decrease the
	// nesting level while they should not modify it at all. Once we
	// encounter such commands we work around this behavior by increasing
	// the nesting level by 1.
	nestingBugRe = regexp.MustCompile(`(?i)^\s*(else|elseif)\s*\(`)
)

const maxLineSize = 1024 * 1024

type (
	// Options control how the trace stream is interpreted.
	Options struct {
		// IgnoreNesting discards the nesting level field of the log,
		// forcing depth inference from source locality.
		IgnoreNesting bool
		// Diagnostics receives one `Ignored: <line>` line per input
		// line that does not parse as a trace event. Defaults to
		// stderr.
		Diagnostics io.Writer
	}

	// Parser yields events from a trace stream one at a time. An event is
	// only yielded once the following line has been parsed, since
	// intervening continuation lines may still extend its code text.
	Parser struct {
		scanner *bufio.Scanner
		opts    Options

		pending    calltree.RawEvent
		hasPending bool
	}
)

func NewParser(r io.Reader, opts Options) *Parser {
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)
	return &Parser{
		scanner: scanner,
		opts:    opts,
	}
}

// Next returns the next event of the stream, or io.EOF once the stream is
// exhausted.
func (p *Parser) Next() (calltree.RawEvent, error) {
	for p.scanner.Scan() {
		line := strings.TrimRightFunc(p.scanner.Text(), unicode.IsSpace)

		ev, ok := p.parseLine(line)
		if !ok {
			if !p.hasPending || balancedParens(p.pending.Site.Code) {
				fmt.Fprintf(p.opts.Diagnostics, "Ignored: %s\n", line)
			} else {
				// A multi-line statement: the previous event's
				// parentheses are still open, so this line
				// belongs to its code text.
				p.pending.Site.Code += `\n` + line
			}
			continue
		}

		if p.hasPending {
			out := p.pending
			p.pending = ev
			return out, nil
		}
		p.pending = ev
		p.hasPending = true
	}
	if err := p.scanner.Err(); err != nil {
		return calltree.RawEvent{}, err
	}
	if p.hasPending {
		out := p.pending
		p.hasPending = false
		return out, nil
	}
	return calltree.RawEvent{}, io.EOF
}

func (p *Parser) parseLine(line string) (calltree.RawEvent, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return calltree.RawEvent{}, false
	}
	groups := make(map[string]string, 5)
	for i, name := range lineRe.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	timestamp, err := strconv.ParseFloat(groups["timestamp"], 64)
	if err != nil {
		return calltree.RawEvent{}, false
	}
	lineNumber, err := strconv.Atoi(groups["line"])
	if err != nil {
		return calltree.RawEvent{}, false
	}

	ev := calltree.RawEvent{
		Timestamp: timestamp,
		Site: calltree.CallSite{
			File: groups["file"],
			Line: lineNumber,
			Code: groups["code"],
		},
	}

	if !p.opts.IgnoreNesting && groups["frame"] != "" {
		depth, err := strconv.Atoi(groups["frame"])
		if err != nil {
			return calltree.RawEvent{}, false
		}
		if nestingBugRe.MatchString(ev.Site.Code) {
			depth++
		}
		ev.Depth = depth
	}
	return ev, true
}

func balancedParens(code string) bool {
	nesting := 0
	for _, c := range code {
		switch c {
		case '(':
			nesting++
		case ')':
			nesting--
		}
	}
	return nesting == 0
}
