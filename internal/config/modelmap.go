package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ModelMap holds the static, hand-edited model-name mapping tables
// referenced in SPEC_FULL.md §4.1 step 4: one table per inbound dialect,
// each mapping a requested model name to the Upstream model name to send.
// YAML is used here rather than the JSON the rest of this package uses
// because these tables are an ops artifact meant to be hand-edited, not
// machine-written settings.
type ModelMap struct {
	Custom    map[string]string `yaml:"custom,omitempty"`
	OpenAI    map[string]string `yaml:"openai,omitempty"`
	Anthropic map[string]string `yaml:"anthropic,omitempty"`
}

// LoadModelMap reads a YAML model-mapping file. A missing file is not an
// error; it yields an empty ModelMap so lookups simply fall through to the
// identity mapping.
func LoadModelMap(path string) (ModelMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ModelMap{}, nil
		}
		return ModelMap{}, errors.Wrapf(err, "config: reading model map %s", path)
	}
	var m ModelMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return ModelMap{}, errors.Wrapf(err, "config: parsing model map %s", path)
	}
	return m, nil
}

// Resolve looks requested up in the table for dialect ("custom", "openai",
// or "anthropic"), falling back to requested unchanged if no entry exists.
func (m ModelMap) Resolve(dialect, requested string) string {
	var table map[string]string
	switch dialect {
	case "custom":
		table = m.Custom
	case "openai":
		table = m.OpenAI
	case "anthropic":
		table = m.Anthropic
	}
	if mapped, ok := table[requested]; ok {
		return mapped
	}
	return requested
}
