package layout

import (
	"github.com/matzehuels/blockorder/pkg/cfg"
)

// Scorer computes the locality score of edges. It is immutable and safe for
// concurrent use.
type Scorer struct {
	params Params

	fallthroughWeight    int64
	forwardJumpWeight    int64
	backwardJumpWeight   int64
	forwardJumpDistance  int64
	backwardJumpDistance int64
}

// NewScorer creates a scorer for p.
//
// NewScorer panics with "Integer overflow" if scores computed with p could
// overflow int64. The check runs once here so that EdgeScore stays free of
// overflow tests. Use [CheckParams] to validate untrusted parameters first.
func NewScorer(p Params) *Scorer {
	if overflows(p) {
		panic("Integer overflow")
	}
	return &Scorer{
		params:               p,
		fallthroughWeight:    int64(p.FallthroughWeight),
		forwardJumpWeight:    int64(p.ForwardJumpWeight),
		backwardJumpWeight:   int64(p.BackwardJumpWeight),
		forwardJumpDistance:  int64(p.ForwardJumpDistance),
		backwardJumpDistance: int64(p.BackwardJumpDistance),
	}
}

// Params returns the parameters the scorer was built with.
func (s *Scorer) Params() Params { return s.params }

// EdgeScore returns the score of e when the sink block starts distance bytes
// after the end of the source block. Negative distances place the sink
// before the source.
func (s *Scorer) EdgeScore(e *cfg.Edge, distance int64) int64 {
	switch e.Kind {
	case cfg.Call:
		distance += int64(e.Src.Size / 2)
	case cfg.Return:
		distance += int64(e.Sink.Size / 2)
	case cfg.BranchOrFallthrough:
		if distance == 0 {
			return int64(e.Weight) * s.fallthroughWeight * s.forwardJumpDistance * s.backwardJumpDistance
		}
	}

	w := int64(e.Weight)
	if distance >= 0 {
		if distance < s.forwardJumpDistance {
			return w * s.forwardJumpWeight * s.backwardJumpDistance * (s.forwardJumpDistance - distance)
		}
		return 0
	}
	if -distance < s.backwardJumpDistance {
		return w * s.backwardJumpWeight * s.forwardJumpDistance * (s.backwardJumpDistance + distance)
	}
	return 0
}
