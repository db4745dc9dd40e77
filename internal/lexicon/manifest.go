package lexicon

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceDef describes one dictionary file and its priority weight.
type SourceDef struct {
	Key    string  `yaml:"key"`
	File   string  `yaml:"file"`
	Weight float64 `yaml:"weight"`
}

// Manifest lists sources in configuration order; ties in weight keep this order.
type Manifest struct {
	Sources []SourceDef `yaml:"sources"`
}

// DefaultManifest is the canonical three-source setup.
func DefaultManifest() Manifest {
	return Manifest{Sources: []SourceDef{
		{Key: "jiaocai", File: "教材_paiwan_words.json", Weight: 1.0},
		{Key: "qianzi", File: "千字表(東排灣語).json", Weight: 0.9},
		{Key: "bihua", File: "華語筆畫字典.json", Weight: 0.7},
	}}
}

// LoadManifest reads a YAML manifest. An empty path yields DefaultManifest.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks that every source has a key and a file.
func (m Manifest) Validate() error {
	if len(m.Sources) == 0 {
		return errors.New("manifest: no sources")
	}
	for i, def := range m.Sources {
		if def.Key == "" {
			return fmt.Errorf("manifest: source %d: key required", i)
		}
		if def.File == "" {
			return fmt.Errorf("manifest: source %s: file required", def.Key)
		}
	}
	return nil
}
