package layout

import (
	"github.com/matzehuels/blockorder/pkg/cfg"
)

// Cluster is a run of blocks laid out contiguously.
type Cluster struct {
	BBIndexes   []int `json:"bb_indexes" msgpack:"bb_indexes"`
	LayoutIndex int   `json:"layout_index" msgpack:"layout_index"`
}

// Score splits a function's score into edges inside the function and calls
// and returns leaving it.
type Score struct {
	Intra    int64 `json:"intra" msgpack:"intra"`
	InterOut int64 `json:"inter_out" msgpack:"inter_out"`
}

// Total returns Intra + InterOut.
func (s Score) Total() int64 { return s.Intra + s.InterOut }

func (s Score) add(o Score) Score {
	return Score{Intra: s.Intra + o.Intra, InterOut: s.InterOut + o.InterOut}
}

// FunctionClusterInfo is the layout of one hot function.
type FunctionClusterInfo struct {
	Name string `json:"name" msgpack:"name"`
	// Key is the ordinal of the function's entry block.
	Key uint64 `json:"key" msgpack:"key"`
	// CFG is not serialized; see [Layout.Attach].
	CFG *cfg.Graph `json:"-" msgpack:"-" bson:"-"`

	Clusters []Cluster `json:"clusters" msgpack:"clusters"`
	// ColdClusterLayoutIndex positions the function's cold blocks among all
	// cold regions.
	ColdClusterLayoutIndex int `json:"cold_cluster_layout_index" msgpack:"cold_cluster_layout_index"`

	OriginalScore  Score `json:"original_score" msgpack:"original_score"`
	OptimizedScore Score `json:"optimized_score" msgpack:"optimized_score"`
}

// HotBBIndexes returns the block indexes of all clusters in layout order.
func (f *FunctionClusterInfo) HotBBIndexes() []int {
	var out []int
	for _, c := range f.Clusters {
		out = append(out, c.BBIndexes...)
	}
	return out
}

// ColdBBIndexes returns the indexes of blocks in no cluster, in original
// order. It needs CFG.
func (f *FunctionClusterInfo) ColdBBIndexes() []int {
	if f.CFG == nil {
		return nil
	}
	hot := make(map[int]bool)
	for _, idx := range f.HotBBIndexes() {
		hot[idx] = true
	}
	var out []int
	for _, n := range f.CFG.Nodes {
		if !hot[n.BBIndex] {
			out = append(out, n.BBIndex)
		}
	}
	return out
}

// ColdPlaceholder records a function without hot blocks. Its code keeps its
// original order and is placed among the cold regions.
type ColdPlaceholder struct {
	Name                   string     `json:"name" msgpack:"name"`
	Key                    uint64     `json:"key" msgpack:"key"`
	CFG                    *cfg.Graph `json:"-" msgpack:"-" bson:"-"`
	ColdClusterLayoutIndex int        `json:"cold_cluster_layout_index" msgpack:"cold_cluster_layout_index"`
}

// Layout is the result of ordering a whole program.
type Layout struct {
	Params Params `json:"params" msgpack:"params"`
	// Functions holds hot functions sorted by Key. Their layout indexes
	// follow the same order.
	Functions []*FunctionClusterInfo `json:"functions" msgpack:"functions"`
	// Cold holds functions without hot blocks sorted by Key.
	Cold []ColdPlaceholder `json:"cold,omitempty" msgpack:"cold,omitempty"`
}

// Function returns the hot function with the given key, or nil.
func (l *Layout) Function(key uint64) *FunctionClusterInfo {
	for _, f := range l.Functions {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// FunctionByName returns the hot function with the given primary name, or nil.
func (l *Layout) FunctionByName(name string) *FunctionClusterInfo {
	for _, f := range l.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Totals summarizes a layout.
type Totals struct {
	HotFunctions   int   `json:"hot_functions" msgpack:"hot_functions"`
	ColdFunctions  int   `json:"cold_functions" msgpack:"cold_functions"`
	HotBlocks      int   `json:"hot_blocks" msgpack:"hot_blocks"`
	OriginalScore  Score `json:"original_score" msgpack:"original_score"`
	OptimizedScore Score `json:"optimized_score" msgpack:"optimized_score"`
}

// Improvement returns the optimized total score relative to the original
// one, or 0 when the original score is 0.
func (t Totals) Improvement() float64 {
	orig := t.OriginalScore.Total()
	if orig == 0 {
		return 0
	}
	return float64(t.OptimizedScore.Total()) / float64(orig)
}

// Totals sums scores and counts over all functions.
func (l *Layout) Totals() Totals {
	t := Totals{HotFunctions: len(l.Functions), ColdFunctions: len(l.Cold)}
	for _, f := range l.Functions {
		t.HotBlocks += len(f.HotBBIndexes())
		t.OriginalScore = t.OriginalScore.add(f.OriginalScore)
		t.OptimizedScore = t.OptimizedScore.add(f.OptimizedScore)
	}
	return t
}

// Attach sets the CFG fields from p. It is needed after decoding a layout.
// Functions missing from p keep a nil CFG.
func (l *Layout) Attach(p *cfg.Program) {
	byKey := make(map[uint64]*cfg.Graph, len(p.Graphs))
	for _, g := range p.Graphs {
		byKey[g.Key()] = g
	}
	for _, f := range l.Functions {
		f.CFG = byKey[f.Key]
	}
	for i := range l.Cold {
		l.Cold[i].CFG = byKey[l.Cold[i].Key]
	}
}
