package tracefile

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/getsentry/cmakestat/internal/calltree"
	"github.com/getsentry/cmakestat/internal/testutil"
)

func parseAll(t *testing.T, input string, opts Options) ([]calltree.RawEvent, string) {
	t.Helper()
	var diag bytes.Buffer
	opts.Diagnostics = &diag
	p := NewParser(strings.NewReader(input), opts)
	var events []calltree.RawEvent
	for {
		ev, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("parsing: %v", err)
		}
		events = append(events, ev)
	}
	return events, diag.String()
}

func TestParserEvents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
		want  []calltree.RawEvent
	}{
		{
			name: "annotated trace",
			input: "(1370737983.999883) (1) /src/CMakeLists.txt(3):  project(test)\n" +
				"(1370737984.100021) (2) /src/macros.cmake(10):  set(FOO 1)\n",
			want: []calltree.RawEvent{
				{
					Depth:     1,
					Timestamp: 1370737983.999883,
					Site:      calltree.CallSite{File: "/src/CMakeLists.txt", Line: 3, Code: "project(test)"},
				},
				{
					Depth:     2,
					Timestamp: 1370737984.100021,
					Site:      calltree.CallSite{File: "/src/macros.cmake", Line: 10, Code: "set(FOO 1)"},
				},
			},
		},
		{
			name:  "trace without nesting",
			input: "(10.5) /src/CMakeLists.txt(3):  project(test)\n",
			want: []calltree.RawEvent{
				{
					Timestamp: 10.5,
					Site:      calltree.CallSite{File: "/src/CMakeLists.txt", Line: 3, Code: "project(test)"},
				},
			},
		},
		{
			name:  "ignored nesting",
			input: "(10.5) (4) /src/CMakeLists.txt(3):  project(test)\n",
			opts:  Options{IgnoreNesting: true},
			want: []calltree.RawEvent{
				{
					Timestamp: 10.5,
					Site:      calltree.CallSite{File: "/src/CMakeLists.txt", Line: 3, Code: "project(test)"},
				},
			},
		},
		{
			name: "multi-line statement",
			input: "(10.5) (1) /src/CMakeLists.txt(3):  set(SOURCES\n" +
				"    main.c\n" +
				"    util.c)\n" +
				"(11.0) (1) /src/CMakeLists.txt(7):  project(test)\n",
			want: []calltree.RawEvent{
				{
					Depth:     1,
					Timestamp: 10.5,
					Site: calltree.CallSite{
						File: "/src/CMakeLists.txt",
						Line: 3,
						Code: `set(SOURCES\n    main.c\n    util.c)`,
					},
				},
				{
					Depth:     1,
					Timestamp: 11.0,
					Site:      calltree.CallSite{File: "/src/CMakeLists.txt", Line: 7, Code: "project(test)"},
				},
			},
		},
		{
			name:  "windows line ending",
			input: "(10.5) (1) /src/CMakeLists.txt(3):  project(test)\r\n",
			want: []calltree.RawEvent{
				{
					Depth:     1,
					Timestamp: 10.5,
					Site:      calltree.CallSite{File: "/src/CMakeLists.txt", Line: 3, Code: "project(test)"},
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			events, diag := parseAll(t, test.input, test.opts)
			if diff := testutil.Diff(test.want, events); diff != "" {
				t.Fatalf("events mismatch: %s", diff)
			}
			if diag != "" {
				t.Fatalf("unexpected diagnostics: %q", diag)
			}
		})
	}
}

func TestParserDiagnostics(t *testing.T) {
	input := "-- The C compiler identification is GNU\n" +
		"(10.5) (1) /src/CMakeLists.txt(3):  project(test)\n" +
		"some message from the script\n"
	events, diag := parseAll(t, input, Options{})

	if got, want := len(events), 1; got != want {
		t.Fatalf("got %d events, want %d", got, want)
	}
	want := "Ignored: -- The C compiler identification is GNU\n" +
		"Ignored: some message from the script\n"
	if diag != want {
		t.Fatalf("got diagnostics %q, want %q", diag, want)
	}
}

func TestParserElseNestingWorkaround(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{"else", "else()", 3},
		{"elseif", "elseif(FOO)", 3},
		{"upper case", "ELSE ()", 3},
		{"leading whitespace", "  else()", 3},
		{"endif untouched", "endif()", 2},
		{"else variable untouched", "set(else_branch 1)", 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			events, _ := parseAll(t, "(10.5) (2) /src/CMakeLists.txt(3):  "+test.code+"\n", Options{})
			if got := events[0].Depth; got != test.want {
				t.Fatalf("got depth %d, want %d", got, test.want)
			}
		})
	}
}

func TestParserYieldsPendingEventAtEOF(t *testing.T) {
	p := NewParser(strings.NewReader("(10.5) (1) /src/CMakeLists.txt(3):  project(test)"), Options{Diagnostics: io.Discard})
	ev, err := p.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Site.Code != "project(test)" {
		t.Fatalf("got code %q", ev.Site.Code)
	}
	_, err = p.Next()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}
