package cfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/blockorder/pkg/errors"
)

// Profile document encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath picks the document encoding from a file extension.
// Anything other than .yaml or .yml is treated as JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// =============================================================================
// Reading
// =============================================================================

// ReadDocument decodes a profile document in the given format from r.
// ReadDocument does not close r.
func ReadDocument(r io.Reader, format string) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON, "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, errors.Wrap(errors.ErrCodeInvalidProfile, err, "decode json")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return Document{}, errors.Wrap(errors.ErrCodeInvalidProfile, err, "decode yaml")
		}
	default:
		return Document{}, errors.New(errors.ErrCodeInvalidFormat, "unknown profile format %q", format)
	}
	return doc, nil
}

// ReadProgram decodes and builds a program from r.
func ReadProgram(r io.Reader, format string) (*Program, error) {
	doc, err := ReadDocument(r, format)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// ReadProgramFile reads a profile file, choosing the format from its extension.
func ReadProgramFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadProgram(f, FormatFromPath(path))
}

// =============================================================================
// Writing
// =============================================================================

// WriteDocument encodes doc in the given format to w.
func WriteDocument(w io.Writer, doc Document, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return enc.Close()
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown profile format %q", format)
	}
	return nil
}

// MarshalProgram returns the compact JSON encoding of p's document.
// The output is deterministic, so it doubles as a content hash input.
func MarshalProgram(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(p.Document()); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
