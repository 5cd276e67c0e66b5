package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.FeedURL = "https://example.com/feed.xml"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing feed url", func(c *Config) { c.FeedURL = "" }},
		{"hashtags too long", func(c *Config) {
			c.MaxLength = 20
			c.Hashtags = strings.Repeat("#", 19)
		}},
		{"too many images", func(c *Config) { c.MaxImages = 5 }},
		{"negative images", func(c *Config) { c.MaxImages = -1 }},
		{"negative max posts", func(c *Config) { c.MaxPosts = -1 }},
		{"unknown visibility", func(c *Config) { c.Visibility = "friends-only" }},
		{"tiny max length", func(c *Config) { c.MaxLength = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_HashtagsCountedInRunes(t *testing.T) {
	cfg := validConfig()
	cfg.MaxLength = 12
	// Ten multibyte runes fit the budget of 10 even though the byte
	// length is far larger.
	cfg.Hashtags = strings.Repeat("é", 10)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cfg.Hashtags = strings.Repeat("é", 11)
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate = %v, want ErrInvalid for 11 runes in budget of 10", err)
	}
}

func TestLoadFile_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedtoot.yaml")
	content := `post_template: "{title} — {link}"
post_hashtags: "#news #feed"
post_max_length: 280
post_visibility: unlisted
post_language: en
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cfg := validConfig()
	f.Apply(&cfg)

	if cfg.Template != "{title} — {link}" {
		t.Errorf("template = %q", cfg.Template)
	}
	if cfg.Hashtags != "#news #feed" {
		t.Errorf("hashtags = %q", cfg.Hashtags)
	}
	if cfg.MaxLength != 280 {
		t.Errorf("max length = %d", cfg.MaxLength)
	}
	if cfg.Visibility != "unlisted" {
		t.Errorf("visibility = %q", cfg.Visibility)
	}
	if cfg.Language != "en" {
		t.Errorf("language = %q", cfg.Language)
	}

	// Fields the file omits keep their current values.
	if cfg.StateFile != DefaultStateFile {
		t.Errorf("state file = %q, want default", cfg.StateFile)
	}
	if cfg.MaxPosts != DefaultMaxPosts {
		t.Errorf("max posts = %d, want default", cfg.MaxPosts)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedtoot.yaml")
	if err := os.WriteFile(path, []byte("post_template: [unclosed"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
