// Package cfg provides the weighted control-flow graph model consumed by the
// code-layout engine.
//
// # Overview
//
// A [Program] holds one [Graph] per function. Each graph owns its basic-block
// [Node] values and the [Edge] values between them. Nodes carry a
// process-wide unique ordinal, the block's index within its function, a size
// in bytes and an execution frequency derived from profile weights.
//
// Edges come in three kinds ([EdgeKind]):
//
//   - [BranchOrFallthrough]: intra-function control flow
//   - [Call]: a call site transferring control to another function's entry
//   - [Return]: a return transferring control back to a caller block
//
// Branch edges always stay inside one graph ([Graph.IntraEdges]). Call and
// return edges that cross functions are recorded on the source graph's
// [Graph.InterEdges].
//
// # Building Programs
//
// Programs are built from a profile [Document], usually decoded from JSON or
// YAML with [ReadDocument] or [ReadProgramFile]:
//
//	doc := cfg.Document{
//	    Functions: []cfg.FunctionDoc{{
//	        Names: []string{"foo"},
//	        Nodes: []cfg.NodeDoc{{Ordinal: 1, BBIndex: 0, Size: 10}, {Ordinal: 2, BBIndex: 1, Size: 10}},
//	    }},
//	    Edges: []cfg.EdgeDoc{{Src: 1, Sink: 2, Weight: 100}},
//	}
//	prog, err := cfg.Build(doc)
//
// [Build] validates the document and computes node frequencies. A node's
// frequency is the larger of its explicit profile frequency and the total
// weight entering or leaving it. Nodes with zero frequency are cold.
//
// Graphs are read-only once built. The layout engine references nodes and
// edges but never mutates them, so a Program can be shared across goroutines.
package cfg
