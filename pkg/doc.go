// Package pkg provides the core libraries of blockorder, a profile-guided
// basic block layout tool.
//
// # Overview
//
// blockorder reads a weighted control flow profile of a program, chains the
// hot blocks of every function so that frequent branches become fallthroughs,
// and emits the files a linker needs to apply that order. The pkg directory
// is organized into these areas:
//
//  1. [cfg] - Control flow graphs and the profile document format
//  2. [layout] - Scoring and chain building (the layout algorithm)
//  3. [render] - Cluster files, symbol order files and diagrams
//  4. [pipeline] - Orchestration (load → layout → render) with caching
//  5. [cache], [store] - Layout cache and persisted runs
//
// # Architecture
//
// The typical data flow:
//
//	profile.yaml / profile.json
//	         ↓
//	    [cfg] package (build graphs, classify edges)
//	         ↓
//	    [layout] package (NodeChainBuilder per hot function)
//	         ↓
//	    [render] packages (clusters, symorder, json, dot, svg)
//
// # Quick Start
//
//	p, _ := cfg.ReadProgramFile("profile.yaml")
//	l := layout.NewCodeLayout(layout.DefaultParams(), p.Graphs).OrderAll()
//	_, _ = clusters.WriteClusters(os.Stdout, l)
//
// Or with caching and all output formats:
//
//	r := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
//	res, _ := r.Execute(ctx, pipeline.Options{ProfilePath: "profile.yaml"})
//
// # Main Packages
//
// [cfg] - Functions are graphs of basic blocks identified by a global ordinal.
// Edges are branches, calls or returns, weighted by sample counts.
//
// [layout] - [layout.Scorer] rates an edge by the distance between its ends.
// [layout.NodeChainBuilder] greedily merges chains of blocks by score gain,
// and [layout.CodeLayout] runs it for every hot function in parallel.
//
// [render/clusters] - Basic block sections cluster file and symbol ordering
// file, the two outputs consumed by the linker.
//
// [render/nodelink] - Graphviz diagrams of one function annotated with the
// computed order.
//
// [errors] - Error codes shared by the CLI and the HTTP API.
//
// [observability] - Hooks around pipeline stages and cache lookups.
//
// [cfg]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/cfg
// [layout]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/layout
// [render]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/render
// [render/clusters]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/render/clusters
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/render/nodelink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/store
// [errors]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/blockorder/pkg/observability
package pkg
