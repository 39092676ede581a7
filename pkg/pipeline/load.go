package pipeline

import (
	"bytes"
	"context"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/cfg"
)

// Load reads the profile named by opts and builds its program.
func Load(ctx context.Context, opts Options) (*cfg.Program, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(opts.Profile) > 0 {
		return cfg.ReadProgram(bytes.NewReader(opts.Profile), opts.ProfileFormat)
	}
	opts.Logger.Debug("reading profile", "path", opts.ProfilePath, "format", opts.ProfileFormat)
	return cfg.ReadProgramFile(opts.ProfilePath)
}

// ProgramHash returns the content hash of p's canonical encoding. Profiles
// that differ only in formatting or encoding hash the same.
func ProgramHash(p *cfg.Program) (string, error) {
	data, err := cfg.MarshalProgram(p)
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}
