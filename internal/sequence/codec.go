package sequence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the textual encoding of a sequence file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes seqs to w.
func Encode(w io.Writer, f Format, seqs []Sequence) error {
	if seqs == nil {
		seqs = []Sequence{}
	}
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(seqs); err != nil {
			return fmt.Errorf("yaml encode: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(seqs); err != nil {
			return fmt.Errorf("json encode: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported sequence format: %s", f)
	}
}

// Decode reads and validates sequences from r.
func Decode(r io.Reader, f Format) ([]Sequence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sequences: %w", err)
	}
	var seqs []Sequence
	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &seqs); err != nil {
			return nil, fmt.Errorf("yaml decode: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&seqs); err != nil {
			return nil, fmt.Errorf("json decode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sequence format: %s", f)
	}
	for _, q := range seqs {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return seqs, nil
}

// Save writes seqs to path, format chosen by extension.
func Save(path string, seqs []Sequence) error {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatFromPath(path), seqs); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load reads sequences from path, format chosen by extension.
func Load(path string) ([]Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sequences: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}
