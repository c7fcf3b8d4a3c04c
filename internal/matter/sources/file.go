// Package sources provides persistent origins for matter catalogs.
package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/daniacca/mattercore/internal/matter"
)

// Format is a catalog file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the encoding from the file extension. Anything that
// is not .toml is read as JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// DecodeCatalog parses a catalog in the given format. It does not validate.
func DecodeCatalog(data []byte, format Format) (matter.CatalogConfig, error) {
	var cfg matter.CatalogConfig
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return matter.CatalogConfig{}, fmt.Errorf("decode toml catalog: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return matter.CatalogConfig{}, fmt.Errorf("decode json catalog: %w", err)
		}
	default:
		return matter.CatalogConfig{}, fmt.Errorf("unsupported catalog format %q", format)
	}
	return cfg, nil
}

// LoadCatalogFile reads and validates a catalog file.
func LoadCatalogFile(path string) (matter.CatalogConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return matter.CatalogConfig{}, fmt.Errorf("read catalog: %w", err)
	}
	cfg, err := DecodeCatalog(data, FormatFromPath(path))
	if err != nil {
		return matter.CatalogConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := matter.ValidateCatalogConfig(cfg); err != nil {
		return matter.CatalogConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// NewFileSource loads a catalog file into an in-memory source.
func NewFileSource(path string) (*matter.CatalogSource, error) {
	cfg, err := LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return matter.NewCatalogSource(cfg)
}
