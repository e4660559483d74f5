// Package dataset reads and writes corpus snapshots as JSON or YAML files so
// a corpus can be moved between stores or evaluated without a database.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// Format is a dataset file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// File is the on-disk layout of a corpus snapshot.
type File struct {
	Dataset  product.Source    `json:"dataset" yaml:"dataset"`
	Products []product.Product `json:"products" yaml:"products"`
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "unsupported dataset file extension %q", filepath.Ext(path))
}

// Decode reads a dataset file in the given format.
func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding json dataset: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decoding yaml dataset: %w", err)
		}
	default:
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "unsupported dataset format %q", format)
	}
	if f.Dataset == "" {
		f.Dataset = product.SourceCatalog
	}
	for i := range f.Products {
		if f.Products[i].Source == "" {
			f.Products[i].Source = f.Dataset
		}
	}
	return &f, nil
}

// Encode writes f in the given format.
func Encode(w io.Writer, format Format, f *File) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	}
	return pkgerrors.Newf(pkgerrors.ErrInvalidInput, 400, "unsupported dataset format %q", format)
}

// ReadFile decodes path, choosing the format from its extension.
func ReadFile(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer fh.Close()
	return Decode(fh, format)
}

// WriteFile writes atomically through a temp file in the same directory.
func WriteFile(path string, f *File) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := Encode(tmp, format, f); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming dataset file: %w", err)
	}
	return nil
}
