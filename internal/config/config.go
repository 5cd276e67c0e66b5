// Package config holds the immutable run parameters of the publish pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStateFile  = "state.json"
	DefaultMaxPosts   = 10
	DefaultTemplate   = "{title}\n\n{link}"
	DefaultMaxLength  = 499
	DefaultMaxImages  = 4
	DefaultVisibility = "public"
	DefaultAPIBaseURL = "https://mastodon.social"

	// Mastodon rejects statuses with more than four attachments.
	MaxImagesCeiling = 4
)

// ErrInvalid marks a configuration that fails pre-flight validation. The
// run aborts before any network or state I/O.
var ErrInvalid = errors.New("invalid config")

// Config is passed by value into every component; there is no ambient
// mutable run state.
type Config struct {
	FeedURL    string
	StateFile  string
	MaxPosts   int
	Template   string
	Hashtags   string
	MaxLength  int
	MaxImages  int
	Visibility string
	Language   string
	APIBaseURL string
	PostLog    string
	DryRun     bool
}

// Default returns the built-in settings, before any config file or flag
// overrides.
func Default() Config {
	return Config{
		StateFile:  DefaultStateFile,
		MaxPosts:   DefaultMaxPosts,
		Template:   DefaultTemplate,
		MaxLength:  DefaultMaxLength,
		MaxImages:  DefaultMaxImages,
		Visibility: DefaultVisibility,
		APIBaseURL: DefaultAPIBaseURL,
	}
}

// File is the optional YAML config file. Every field defaults to the flag
// value when absent.
type File struct {
	StateFile  string `yaml:"state_file"`
	MaxPosts   int    `yaml:"max_posts"`
	Template   string `yaml:"post_template"`
	Hashtags   string `yaml:"post_hashtags"`
	MaxLength  int    `yaml:"post_max_length"`
	MaxImages  int    `yaml:"post_max_images"`
	Visibility string `yaml:"post_visibility"`
	Language   string `yaml:"post_language"`
	APIBaseURL string `yaml:"mastodon_api_base_url"`
	PostLog    string `yaml:"post_log"`
}

// LoadFile reads and parses the YAML config file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// Apply overlays the file's settings onto cfg. Unset fields keep whatever
// cfg already holds.
func (f *File) Apply(cfg *Config) {
	if f.StateFile != "" {
		cfg.StateFile = f.StateFile
	}
	if f.MaxPosts != 0 {
		cfg.MaxPosts = f.MaxPosts
	}
	if f.Template != "" {
		cfg.Template = f.Template
	}
	if f.Hashtags != "" {
		cfg.Hashtags = f.Hashtags
	}
	if f.MaxLength != 0 {
		cfg.MaxLength = f.MaxLength
	}
	if f.MaxImages != 0 {
		cfg.MaxImages = f.MaxImages
	}
	if f.Visibility != "" {
		cfg.Visibility = f.Visibility
	}
	if f.Language != "" {
		cfg.Language = f.Language
	}
	if f.APIBaseURL != "" {
		cfg.APIBaseURL = f.APIBaseURL
	}
	if f.PostLog != "" {
		cfg.PostLog = f.PostLog
	}
}

// Validate checks the invariants that must hold before any processing
// starts. A violation aborts the run with no state mutation.
func (cfg Config) Validate() error {
	if cfg.FeedURL == "" {
		return fmt.Errorf("%w: feed URL is required", ErrInvalid)
	}
	if cfg.MaxLength <= 2 {
		return fmt.Errorf("%w: post max length %d is too small", ErrInvalid, cfg.MaxLength)
	}
	if utf8.RuneCountInString(cfg.Hashtags) > cfg.MaxLength-2 {
		return fmt.Errorf("%w: hashtags are longer than post max length", ErrInvalid)
	}
	if cfg.MaxImages < 0 || cfg.MaxImages > MaxImagesCeiling {
		return fmt.Errorf("%w: post max images %d (ceiling %d)", ErrInvalid, cfg.MaxImages, MaxImagesCeiling)
	}
	if cfg.MaxPosts < 0 {
		return fmt.Errorf("%w: max posts must not be negative", ErrInvalid)
	}
	switch cfg.Visibility {
	case "public", "unlisted", "private", "direct":
	default:
		return fmt.Errorf("%w: unknown visibility %q (want public, unlisted, private, or direct)", ErrInvalid, cfg.Visibility)
	}
	return nil
}
