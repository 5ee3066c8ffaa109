package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bizpulse/bizpulse/analyst/internal/config"
)

type fileLoader struct {
	src config.Source
}

// Load reads a record file. The format follows the extension: .yaml and
// .yml are YAML, anything else is JSON. The document must be a single object.
func (l *fileLoader) Load(_ context.Context) (*Result, error) {
	res := newResult(l.src)

	fields, err := ReadFile(l.src.Path)
	if err != nil {
		res.Err = fmt.Errorf("file source %q: %w", l.src.ID, err)
		return res, nil
	}
	res.Fields = fields
	return res, nil
}

// ReadFile reads a JSON or YAML record file into a field map.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	fields := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parse yaml %q: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parse json %q: %w", path, err)
		}
	}
	return fields, nil
}
