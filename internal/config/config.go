// Package config loads the per-run merge settings from a YAML file.
package config

import (
	"os"

	"github.com/matta/gmailmerge/internal/message"

	"dario.cat/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// file mirrors the YAML document. DelaySeconds is a pointer so an
// explicit `delay_seconds: 0` survives the defaults merge; zero delay
// is a valid setting.
type file struct {
	Subject      string   `yaml:"subject"`
	Body         string   `yaml:"body"`
	Label        string   `yaml:"label"`
	DelaySeconds *float64 `yaml:"delay_seconds"`
	Mode         string   `yaml:"mode"`
}

func defaults() file {
	delay := 30.0
	return file{
		Label:        "Mail Merge Sent",
		DelaySeconds: &delay,
		Mode:         string(message.ModeNew),
	}
}

// Parse decodes and validates a YAML merge configuration, applying
// defaults for omitted fields.
func Parse(data []byte) (message.Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return message.Config{}, errors.Wrap(err, "parsing merge config")
	}
	if err := mergo.Merge(&f, defaults()); err != nil {
		return message.Config{}, errors.Wrap(err, "applying config defaults")
	}

	mode, err := message.ParseMode(f.Mode)
	if err != nil {
		return message.Config{}, err
	}
	if f.Subject == "" {
		return message.Config{}, errors.New("merge config is missing a subject template")
	}
	if f.Body == "" {
		return message.Config{}, errors.New("merge config is missing a body template")
	}
	if *f.DelaySeconds < 0 {
		return message.Config{}, errors.Errorf("delay_seconds must be >= 0, got %v", *f.DelaySeconds)
	}

	return message.Config{
		Subject:      f.Subject,
		Body:         f.Body,
		Label:        f.Label,
		DelaySeconds: *f.DelaySeconds,
		Mode:         mode,
	}, nil
}

// Load is Parse over a file path.
func Load(path string) (message.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return message.Config{}, errors.Wrapf(err, "reading merge config %q", path)
	}
	return Parse(data)
}
