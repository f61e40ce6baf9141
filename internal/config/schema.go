package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// WriteSelfDescribingSchema generates a JSON Schema for Settings and writes
// it alongside the settings file, the same self-describing-config pattern
// the original CLI applies to its own configuration surface.
func WriteSelfDescribingSchema(settingsPath string) error {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&Settings{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, "config: marshaling settings schema")
	}

	schemaPath := settingsPath + ".schema.json"
	if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
		return errors.Wrapf(err, "config: creating directory for %s", schemaPath)
	}
	if err := os.WriteFile(schemaPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "config: writing %s", schemaPath)
	}
	return nil
}
