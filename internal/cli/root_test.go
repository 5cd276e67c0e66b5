package cli

import (
	"os"
	"path/filepath"
	"testing"

	"feedtoot/internal/config"
)

func TestBuildConfig_FileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "feedtoot.yaml")
	content := `post_template: "file template {title}"
post_max_length: 300
post_hashtags: "#fromfile"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	oldConfigFile := flagConfigFile
	t.Cleanup(func() { flagConfigFile = oldConfigFile })
	flagConfigFile = cfgPath

	// An explicitly set flag wins over the file.
	if err := rootCmd.Flags().Set("post-max-length", "250"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	flagMaxLength = 250

	cfg, err := buildConfig(rootCmd, []string{"https://example.com/feed.xml"})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	if cfg.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("feed url = %q", cfg.FeedURL)
	}
	if cfg.MaxLength != 250 {
		t.Errorf("max length = %d, want flag value 250 over file value 300", cfg.MaxLength)
	}
	if cfg.Template != "file template {title}" {
		t.Errorf("template = %q, want file value", cfg.Template)
	}
	if cfg.Hashtags != "#fromfile" {
		t.Errorf("hashtags = %q, want file value", cfg.Hashtags)
	}
	// Untouched settings keep their defaults.
	if cfg.Visibility != config.DefaultVisibility {
		t.Errorf("visibility = %q, want default", cfg.Visibility)
	}
}

func TestBuildConfig_MissingFile(t *testing.T) {
	oldConfigFile := flagConfigFile
	t.Cleanup(func() { flagConfigFile = oldConfigFile })
	flagConfigFile = filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := buildConfig(rootCmd, []string{"https://example.com/feed.xml"}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
