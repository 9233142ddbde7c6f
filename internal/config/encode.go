package config

import (
	"encoding/json"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"relfiles/internal/errors"
)

// Formats accepted by Encode and WriteWorkspaceFile.
var Formats = []string{"json", "yaml", "toml"}

// Encode renders cfg in the given format ("json", "yaml" or "toml").
func Encode(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	case "toml":
		return toml.Marshal(cfg)
	default:
		return nil, errors.NewConfigError("format", "unsupported format "+format)
	}
}
