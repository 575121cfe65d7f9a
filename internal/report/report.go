// Package report renders a reconstructed call forest as a human-readable
// profiling report.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/getsentry/cmakestat/internal/calltree"
)

const indentStep = 2

// minFileWidth is the smallest file-path budget the fixed-width layout can
// shorten into (prefix, ellipsis and suffix).
const minFileWidth = 5

type (
	Options struct {
		// Threshold drops calls whose share of the whole duration is
		// below it, 0 meaning no filtering.
		Threshold float64
		// MaxDepth stops descending below it, 0 meaning unlimited.
		MaxDepth int
		// SortByDuration reorders siblings by descending cumulative
		// duration before filtering, keeping insertion order among
		// equals.
		SortByDuration bool
		// SinglePath renders only the first top-level call and its
		// subtree.
		SinglePath bool
		// Width fixes the display width of the variable part of each
		// line (nesting, file path, line number), 0 meaning natural
		// width.
		Width int
	}

	renderer struct {
		w     io.Writer
		f     *calltree.Forest
		opts  Options
		whole float64
	}
)

// Render writes one line per visited call, pre-order, indented
// proportionally to its depth.
func Render(w io.Writer, f *calltree.Forest, opts Options) error {
	whole := f.WholeDuration()
	if whole == 0 {
		whole = 1
	}
	r := renderer{w: w, f: f, opts: opts, whole: whole}
	return r.renderLevel(f.Roots(), 0)
}

func (r *renderer) renderLevel(nodes []int32, depth int) error {
	ordered := nodes
	if r.opts.SortByDuration {
		ordered = make([]int32, len(nodes))
		copy(ordered, nodes)
		sort.SliceStable(ordered, func(i, j int) bool {
			return r.f.Nodes[ordered[i]].Duration > r.f.Nodes[ordered[j]].Duration
		})
	}

	for _, idx := range ordered {
		node := &r.f.Nodes[idx]
		// Once a sibling fails a check the remaining ones are skipped
		// as well. With sorting on this keeps exactly the most
		// expensive calls.
		if r.opts.MaxDepth > 0 && depth+1 > r.opts.MaxDepth {
			break
		}
		if node.Duration/r.whole < r.opts.Threshold {
			break
		}

		site, err := r.formatSite(node.Site, depth+1)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(r.w, "%s%s (%ssec)(%s%%)\n",
			strings.Repeat(" ", depth*indentStep),
			site,
			formatFloat(node.Duration),
			formatFloat(node.Duration/r.whole*100))
		if err != nil {
			return err
		}

		err = r.renderLevel(node.Children, depth+1)
		if err != nil {
			return err
		}

		if r.opts.SinglePath && depth == 0 {
			break
		}
	}
	return nil
}

// formatSite renders `[nesting]file(line):  code`. With a fixed width the
// file path is shortened in the middle and dot-padded so the part before
// the colon occupies exactly opts.Width display cells.
func (r *renderer) formatSite(site calltree.CallSite, nesting int) (string, error) {
	nestingStr := strconv.Itoa(nesting)
	lineStr := strconv.Itoa(site.Line)
	if r.opts.Width == 0 {
		return fmt.Sprintf("[%s]%s(%s):  %s", nestingStr, site.File, lineStr, site.Code), nil
	}

	fileWidth := r.opts.Width - len(lineStr) - len(nestingStr)
	file := site.File
	if runewidth.StringWidth(file) > fileWidth {
		if fileWidth < minFileWidth {
			return "", fmt.Errorf("trace info width %d leaves no room for %s(%s)", r.opts.Width, file, lineStr)
		}
		half := fileWidth / 2
		head := runewidth.Truncate(file, half-1, "")
		tail := runewidth.TruncateLeft(file, runewidth.StringWidth(file)-(half-2), "")
		file = head + "..." + tail
	}
	if pad := fileWidth - runewidth.StringWidth(file); pad > 0 {
		file += strings.Repeat(".", pad)
	}
	return fmt.Sprintf("[%s]%s(%s):  %s", nestingStr, file, lineStr, site.Code), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
