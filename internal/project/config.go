package project

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coreseekdev/textcase/internal/apperr"
	pkgconfig "github.com/coreseekdev/textcase/pkg/config"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFile is the module configuration file name.
	ConfigFile = ".textcase.yml"
	// DefaultDigits is the zero-padding width used when a module does not set one.
	DefaultDigits = 3
	// TagDir holds verb files that are not mapped to an explicit path.
	TagDir = ".textcase/tags"
)

var (
	prefixRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	verbRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	sepRe    = regexp.MustCompile(`^[^/\\0-9\s]*$`)
)

// Settings is the "settings" section of a .textcase.yml file.
type Settings struct {
	Prefix     string  `yaml:"prefix"`
	Sep        string  `yaml:"sep,omitempty"`
	Digits     int     `yaml:"digits"`
	DefaultTag TagList `yaml:"default_tag,omitempty"`
	// Modules maps a parent prefix to its children (prefix → root-relative path).
	// Only the root configuration carries it.
	Modules map[string]map[string]string `yaml:"modules,omitempty"`
}

// Validate checks the settings.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Prefix, validation.Required, validation.Match(prefixRe)),
		validation.Field(&s.Digits, validation.Required, validation.Min(1)),
		validation.Field(&s.Sep, validation.Length(0, 8), validation.Match(sepRe)),
	)
}

// TagList is a list of tag references. A scalar is read as a
// comma-separated list.
type TagList []string

// UnmarshalYAML accepts a sequence of strings or a single scalar.
func (l *TagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.ShortTag() == "!!null" {
			*l = nil
			return nil
		}
		*l = SplitTags(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		var out TagList
		for _, it := range items {
			out = append(out, SplitTags(it)...)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a tag or a list of tags", value.Line)
}

// SplitTags splits a comma-separated tag list, dropping blanks.
func SplitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Config is the content of a .textcase.yml file.
type Config struct {
	Settings Settings          `yaml:"settings"`
	Tags     map[string]string `yaml:"tags,omitempty"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	for verb := range c.Tags {
		if !verbRe.MatchString(verb) {
			return fmt.Errorf("tags: invalid verb %q", verb)
		}
	}
	return nil
}

// parseConfig decodes a .textcase.yml file, applying defaults before validation.
func parseConfig(data []byte, file string) (Config, error) {
	cfg := Config{Settings: Settings{Digits: DefaultDigits}}
	if err := pkgconfig.Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", apperr.ErrConfig, file, err)
	}
	return cfg, nil
}

func marshalConfig(cfg Config) ([]byte, error) {
	return pkgconfig.Marshal(cfg)
}

// TagFile returns the default root-relative verb file path.
func TagFile(verb string) string {
	return path.Join(TagDir, verb+".yml")
}

// ValidVerb reports whether verb can name a tag file.
func ValidVerb(verb string) bool {
	return verbRe.MatchString(verb)
}
