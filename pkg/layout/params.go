package layout

import (
	"math"
	"math/bits"

	"github.com/matzehuels/blockorder/pkg/errors"
)

// Default layout parameters.
const (
	DefaultFallthroughWeight    = 10
	DefaultForwardJumpWeight    = 1
	DefaultBackwardJumpWeight   = 1
	DefaultForwardJumpDistance  = 1024
	DefaultBackwardJumpDistance = 640
	DefaultChainSplitThreshold  = 128
)

// Params configures scoring and chain building.
type Params struct {
	FallthroughWeight    uint64 `json:"fallthrough_weight" toml:"fallthrough_weight" msgpack:"fallthrough_weight"`
	ForwardJumpWeight    uint64 `json:"forward_jump_weight" toml:"forward_jump_weight" msgpack:"forward_jump_weight"`
	BackwardJumpWeight   uint64 `json:"backward_jump_weight" toml:"backward_jump_weight" msgpack:"backward_jump_weight"`
	ForwardJumpDistance  uint64 `json:"forward_jump_distance" toml:"forward_jump_distance" msgpack:"forward_jump_distance"`
	BackwardJumpDistance uint64 `json:"backward_jump_distance" toml:"backward_jump_distance" msgpack:"backward_jump_distance"`

	// ChainSplit allows a chain to be cut in two when merging.
	ChainSplit bool `json:"chain_split" toml:"chain_split" msgpack:"chain_split"`
	// ChainSplitThreshold is the longest chain that may be split.
	ChainSplitThreshold int `json:"chain_split_threshold" toml:"chain_split_threshold" msgpack:"chain_split_threshold"`
}

// DefaultParams returns the default layout parameters.
func DefaultParams() Params {
	return Params{
		FallthroughWeight:    DefaultFallthroughWeight,
		ForwardJumpWeight:    DefaultForwardJumpWeight,
		BackwardJumpWeight:   DefaultBackwardJumpWeight,
		ForwardJumpDistance:  DefaultForwardJumpDistance,
		BackwardJumpDistance: DefaultBackwardJumpDistance,
		ChainSplit:           true,
		ChainSplitThreshold:  DefaultChainSplitThreshold,
	}
}

// CheckParams reports parameters that cannot be used for layout: zero
// weights or distances, a negative split threshold, and combinations whose
// scores could overflow int64. Unlike [NewScorer] it returns an error, so
// callers holding user input can reject it without crashing.
func CheckParams(p Params) error {
	switch {
	case p.FallthroughWeight == 0, p.ForwardJumpWeight == 0, p.BackwardJumpWeight == 0:
		return errors.New(errors.ErrCodeInvalidParams, "jump weights must be positive")
	case p.ForwardJumpDistance == 0, p.BackwardJumpDistance == 0:
		return errors.New(errors.ErrCodeInvalidParams, "jump distances must be positive")
	case p.ChainSplitThreshold < 0:
		return errors.New(errors.ErrCodeInvalidParams, "chain split threshold must not be negative")
	case overflows(p):
		return errors.New(errors.ErrCodeInvalidParams, "Integer overflow: weight %d and distance %d are too large",
			maxWeight(p), maxDistance(p))
	}
	return nil
}

func maxWeight(p Params) uint64 {
	return max(p.FallthroughWeight, p.ForwardJumpWeight, p.BackwardJumpWeight)
}

func maxDistance(p Params) uint64 {
	return max(p.ForwardJumpDistance, p.BackwardJumpDistance)
}

// overflows reports whether maxWeight * maxDistance^2 * MaxUint32 exceeds
// MaxInt64. Every score is bounded by that product because edge weights
// are uint32.
func overflows(p Params) bool {
	d := maxDistance(p)
	hi, prod := bits.Mul64(maxWeight(p), d)
	if hi != 0 {
		return true
	}
	if hi, prod = bits.Mul64(prod, d); hi != 0 {
		return true
	}
	if hi, prod = bits.Mul64(prod, math.MaxUint32); hi != 0 {
		return true
	}
	return prod > math.MaxInt64
}
