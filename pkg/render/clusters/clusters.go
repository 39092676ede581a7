// Package clusters writes layouts in the text formats linkers consume.
//
// The cluster file lists, for every hot function, its symbol names and the
// block indexes of each cluster in layout order:
//
//	!foo
//	!foo_alias
//	!!0 2 1
//
// The symbol order file lists hot function symbols in layout order, followed
// by the cold parts of split functions as name.cold.
package clusters

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/blockorder/pkg/layout"
)

// ColdSuffix is appended to a function's name to form the symbol of its cold
// part.
const ColdSuffix = ".cold"

// countingWriter tracks bytes written and the first error, so callers can
// write freely and check once.
type countingWriter struct {
	bw  *bufio.Writer
	n   int64
	err error
}

func (cw *countingWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}
	n, err := fmt.Fprintf(cw.bw, format, args...)
	cw.n += int64(n)
	cw.err = err
}

func (cw *countingWriter) flush() (int64, error) {
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, cw.bw.Flush()
}

// hotOrder returns the hot functions sorted by their first cluster's
// layout index.
func hotOrder(l *layout.Layout) []*layout.FunctionClusterInfo {
	fns := slices.Clone(l.Functions)
	slices.SortStableFunc(fns, func(a, b *layout.FunctionClusterInfo) int {
		return cmp.Compare(firstLayoutIndex(a), firstLayoutIndex(b))
	})
	return fns
}

func firstLayoutIndex(f *layout.FunctionClusterInfo) int {
	if len(f.Clusters) == 0 {
		return -1
	}
	return f.Clusters[0].LayoutIndex
}

func names(f *layout.FunctionClusterInfo) []string {
	if f.CFG != nil && len(f.CFG.Names) > 0 {
		return f.CFG.Names
	}
	return []string{f.Name}
}

// WriteClusters writes the cluster file for l to w and returns the number
// of bytes written.
func WriteClusters(w io.Writer, l *layout.Layout) (int64, error) {
	cw := &countingWriter{bw: bufio.NewWriter(w)}
	for _, f := range hotOrder(l) {
		for _, name := range names(f) {
			cw.printf("!%s\n", name)
		}
		for _, c := range f.Clusters {
			cw.printf("!!%s\n", joinInts(c.BBIndexes))
		}
	}
	return cw.flush()
}

// WriteSymbolOrder writes the symbol order file for l to w and returns the
// number of bytes written.
//
// A hot function gets a cold symbol only if some of its blocks are outside
// its clusters. Functions without a CFG are assumed to have cold blocks.
// Functions with no hot blocks are listed last under their own name.
func WriteSymbolOrder(w io.Writer, l *layout.Layout) (int64, error) {
	cw := &countingWriter{bw: bufio.NewWriter(w)}
	hot := hotOrder(l)
	for _, f := range hot {
		cw.printf("%s\n", f.Name)
	}

	type coldEntry struct {
		index  int
		symbol string
	}
	var cold []coldEntry
	for _, f := range hot {
		if f.CFG == nil || len(f.ColdBBIndexes()) > 0 {
			cold = append(cold, coldEntry{f.ColdClusterLayoutIndex, f.Name + ColdSuffix})
		}
	}
	for _, p := range l.Cold {
		cold = append(cold, coldEntry{p.ColdClusterLayoutIndex, p.Name})
	}
	slices.SortStableFunc(cold, func(a, b coldEntry) int { return cmp.Compare(a.index, b.index) })
	for _, c := range cold {
		cw.printf("%s\n", c.symbol)
	}
	return cw.flush()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

// FunctionClusters is one function's entry in a cluster file.
type FunctionClusters struct {
	Names    []string
	Clusters [][]int
}

// ReadClusters parses a cluster file. Blank lines and lines starting with
// '#' are ignored.
func ReadClusters(r io.Reader) ([]FunctionClusters, error) {
	var (
		out     []FunctionClusters
		cur     *FunctionClusters
		lineNum int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "!!"):
			if cur == nil {
				return nil, fmt.Errorf("line %d: cluster before function name", lineNum)
			}
			var cluster []int
			for _, field := range strings.Fields(line[2:]) {
				idx, err := strconv.Atoi(field)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad block index %q", lineNum, field)
				}
				cluster = append(cluster, idx)
			}
			cur.Clusters = append(cur.Clusters, cluster)
		case strings.HasPrefix(line, "!"):
			if cur == nil || len(cur.Clusters) > 0 {
				out = append(out, FunctionClusters{})
				cur = &out[len(out)-1]
			}
			cur.Names = append(cur.Names, line[1:])
		default:
			return nil, fmt.Errorf("line %d: unexpected %q", lineNum, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
