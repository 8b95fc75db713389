// Package production provides production integrations: definition loading,
// notification publishing and metrics.
package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// ParseYAML decodes a machine configuration. Unknown fields are rejected.
func ParseYAML(data []byte) (primitives.MachineConfig, error) {
	var cfg primitives.MachineConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return primitives.MachineConfig{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return cfg, nil
}

// ParseJSON decodes a machine configuration. Unknown fields are rejected.
func ParseJSON(data []byte) (primitives.MachineConfig, error) {
	var cfg primitives.MachineConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return primitives.MachineConfig{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a .yaml, .yml or .json machine configuration.
func LoadFile(path string) (primitives.MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return primitives.MachineConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return primitives.MachineConfig{}, fmt.Errorf("%s: unsupported extension (want .yaml, .yml or .json)", path)
}

// CompileFile loads and compiles a machine configuration.
func CompileFile(path string) (*core.Definition, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return core.Compile(cfg)
}
