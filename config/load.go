package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/synapse/errors"
)

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config "+path)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration. Fields absent from the
// document keep their Default values. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Cause(err).
			Detail("decode config").
			User().
			Build()
	}
	if cfg.Workflow.Config == nil {
		cfg.Workflow.Config = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes c as YAML. Handlers are not encoded.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "encode config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "encode config")
	}
	return buf.Bytes(), nil
}

// Validate checks identity fields and id uniqueness within each section.
func (c *Config) Validate() error {
	if c.QuerentID == "" {
		return invalid([]string{"querent_id"}, "must not be empty")
	}
	if c.Workflow.ID == "" {
		return invalid([]string{"workflow", "id"}, "must not be empty")
	}

	seen := make(map[string]struct{}, len(c.Collectors))
	for i, col := range c.Collectors {
		path := []string{"collectors", fmt.Sprint(i), "id"}
		if col.ID == "" {
			return invalid(path, "must not be empty")
		}
		if _, dup := seen[col.ID]; dup {
			return invalid(path, fmt.Sprintf("duplicate collector id %q", col.ID))
		}
		seen[col.ID] = struct{}{}
	}

	seen = make(map[string]struct{}, len(c.Engines))
	for i, e := range c.Engines {
		path := []string{"engines", fmt.Sprint(i), "id"}
		if e.ID == "" {
			return invalid(path, "must not be empty")
		}
		if _, dup := seen[e.ID]; dup {
			return invalid(path, fmt.Sprintf("duplicate engine id %q", e.ID))
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

func invalid(path []string, detail string) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(path...).
		Detail(detail).
		User().
		Build()
}
