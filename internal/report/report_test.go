package report

import (
	"strings"
	"testing"

	"github.com/getsentry/cmakestat/internal/calltree"
)

// forest builds:
//
//	[1] /a.cmake(1) a()   0.6s
//	  [2] /b.cmake(5) b() 0.2s
//	[1] /a.cmake(2) c()   0.4s
func fixture() *calltree.Forest {
	return &calltree.Forest{
		Nodes: []calltree.Node{
			{Parent: -1, Duration: 1.0, Children: []int32{1, 3}},
			{Parent: 0, Duration: 0.6, Children: []int32{2}, Site: calltree.CallSite{File: "/a.cmake", Line: 1, Code: "a()"}},
			{Parent: 1, Duration: 0.2, Site: calltree.CallSite{File: "/b.cmake", Line: 5, Code: "b()"}},
			{Parent: 0, Duration: 0.4, Site: calltree.CallSite{File: "/a.cmake", Line: 2, Code: "c()"}},
		},
	}
}

func render(t *testing.T, f *calltree.Forest, opts Options) string {
	t.Helper()
	var sb strings.Builder
	if err := Render(&sb, f, opts); err != nil {
		t.Fatalf("rendering: %v", err)
	}
	return sb.String()
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		f    *calltree.Forest
		opts Options
		want string
	}{
		{
			name: "whole tree",
			f:    fixture(),
			want: "[1]/a.cmake(1):  a() (0.6sec)(60%)\n" +
				"  [2]/b.cmake(5):  b() (0.2sec)(20%)\n" +
				"[1]/a.cmake(2):  c() (0.4sec)(40%)\n",
		},
		{
			name: "threshold drops cheap calls",
			f:    fixture(),
			opts: Options{Threshold: 0.5},
			want: "[1]/a.cmake(1):  a() (0.6sec)(60%)\n",
		},
		{
			name: "max depth stops descending",
			f:    fixture(),
			opts: Options{MaxDepth: 1},
			want: "[1]/a.cmake(1):  a() (0.6sec)(60%)\n" +
				"[1]/a.cmake(2):  c() (0.4sec)(40%)\n",
		},
		{
			name: "single path keeps the first top-level call",
			f:    fixture(),
			opts: Options{SinglePath: true},
			want: "[1]/a.cmake(1):  a() (0.6sec)(60%)\n" +
				"  [2]/b.cmake(5):  b() (0.2sec)(20%)\n",
		},
		{
			name: "sorting reorders siblings by duration",
			f: &calltree.Forest{
				Nodes: []calltree.Node{
					{Parent: -1, Duration: 1.0, Children: []int32{1, 3}},
					{Parent: 0, Duration: 0.25, Children: []int32{2}, Site: calltree.CallSite{File: "/a.cmake", Line: 1, Code: "a()"}},
					{Parent: 1, Duration: 0.1, Site: calltree.CallSite{File: "/b.cmake", Line: 5, Code: "b()"}},
					{Parent: 0, Duration: 0.75, Site: calltree.CallSite{File: "/a.cmake", Line: 2, Code: "c()"}},
				},
			},
			opts: Options{SortByDuration: true},
			want: "[1]/a.cmake(2):  c() (0.75sec)(75%)\n" +
				"[1]/a.cmake(1):  a() (0.25sec)(25%)\n" +
				"  [2]/b.cmake(5):  b() (0.1sec)(10%)\n",
		},
		{
			name: "empty forest",
			f:    calltree.NewForest(),
			want: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := render(t, test.f, test.opts); got != test.want {
				t.Fatalf("got:\n%s\nwant:\n%s", got, test.want)
			}
		})
	}
}

func TestRenderFixedWidth(t *testing.T) {
	f := &calltree.Forest{
		Nodes: []calltree.Node{
			{Parent: -1, Duration: 1, Children: []int32{1}},
			{Parent: 0, Duration: 1, Site: calltree.CallSite{File: "/very/long/path/to/script.cmake", Line: 10, Code: "foo()"}},
		},
	}

	got := render(t, f, Options{Width: 20})
	want := "[1]/very/l....cmake.(10):  foo() (1sec)(100%)\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderPadsShortPaths(t *testing.T) {
	f := &calltree.Forest{
		Nodes: []calltree.Node{
			{Parent: -1, Duration: 1, Children: []int32{1}},
			{Parent: 0, Duration: 1, Site: calltree.CallSite{File: "a.cmake", Line: 1, Code: "foo()"}},
		},
	}

	got := render(t, f, Options{Width: 12})
	want := "[1]a.cmake...(1):  foo() (1sec)(100%)\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderWidthTooSmall(t *testing.T) {
	f := &calltree.Forest{
		Nodes: []calltree.Node{
			{Parent: -1, Duration: 1, Children: []int32{1}},
			{Parent: 0, Duration: 1, Site: calltree.CallSite{File: "/very/long/path/to/script.cmake", Line: 10, Code: "foo()"}},
		},
	}

	var sb strings.Builder
	if err := Render(&sb, f, Options{Width: 7}); err == nil {
		t.Fatal("expected an error for a width with no room for the file path")
	}
}
