package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"feedtoot/internal/compose"
	"feedtoot/internal/config"
	"feedtoot/internal/feed"
	"feedtoot/internal/mastodon"
	"feedtoot/internal/postlog"
	"feedtoot/internal/publish"
	"feedtoot/internal/state"
)

func runAction(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	return runPipeline(cmd.Context(), cfg)
}

// buildConfig layers settings: built-in defaults, then the optional YAML
// file, then any flag the user set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Default()

	if flagConfigFile != "" {
		file, err := config.LoadFile(flagConfigFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config file: %w", err)
		}
		file.Apply(&cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("state-file") {
		cfg.StateFile = flagStateFile
	}
	if flags.Changed("max-posts") {
		cfg.MaxPosts = flagMaxPosts
	}
	if flags.Changed("post-template") {
		cfg.Template = flagTemplate
	}
	if flags.Changed("post-hashtags") {
		cfg.Hashtags = flagHashtags
	}
	if flags.Changed("post-max-length") {
		cfg.MaxLength = flagMaxLength
	}
	if flags.Changed("post-max-images") {
		cfg.MaxImages = flagMaxImages
	}
	if flags.Changed("post-visibility") {
		cfg.Visibility = flagVisibility
	}
	if flags.Changed("post-language") {
		cfg.Language = flagLanguage
	}
	if flags.Changed("mastodon-api-base-url") {
		cfg.APIBaseURL = flagAPIBaseURL
	}
	if flags.Changed("post-log") {
		cfg.PostLog = flagPostLog
	}

	cfg.FeedURL = args[0]
	cfg.DryRun = flagDryRun
	return cfg, nil
}

// runPipeline is one bridge invocation: load the watermark, fetch and
// select entries, then compose and publish them oldest-first, persisting
// progress on the way out.
func runPipeline(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		slog.Info("dry-run mode enabled")
	}

	st, err := state.New(cfg.StateFile)
	if err != nil {
		return err
	}
	if !cfg.DryRun {
		if err := st.Lock(); err != nil {
			return err
		}
		defer func() {
			if err := st.Unlock(); err != nil {
				slog.Warn("releasing state lock", "error", err)
			}
		}()
	}

	watermark, err := st.Load()
	if err != nil {
		return err
	}
	slog.Debug("state loaded", "watermark", watermark)

	entries, err := feed.Fetch(ctx, cfg.FeedURL)
	if err != nil {
		return err
	}
	slog.Debug("feed fetched", "entries", len(entries))

	now := time.Now().UTC().Unix()
	selected := feed.Select(entries, watermark, now, cfg.MaxPosts)
	slog.Info("entries selected", "eligible", len(selected), "watermark", watermark)

	var poster publish.Poster
	if !cfg.DryRun {
		client, err := mastodon.New(cfg.APIBaseURL, mastodon.Credentials{
			ClientID:     os.Getenv(mastodon.EnvClientID),
			ClientSecret: os.Getenv(mastodon.EnvClientSecret),
			AccessToken:  os.Getenv(mastodon.EnvAccessToken),
		})
		if err != nil {
			return err
		}
		poster = client
	}

	pub, err := publish.New(poster, cfg.DryRun)
	if err != nil {
		return err
	}

	var plog *postlog.Log
	if cfg.PostLog != "" && !cfg.DryRun {
		plog, err = postlog.Open(cfg.PostLog)
		if err != nil {
			return err
		}
		defer func() { _ = plog.Close() }()
	}

	initial := watermark
	published := 0
	var runErr error

	for _, entry := range selected {
		post, err := compose.Compose(entry, cfg)
		if err != nil {
			// A template failure would recur for every entry.
			slog.Error("composing entry", "link", entry.Link, "error", err)
			runErr = err
			break
		}

		res, err := pub.Publish(ctx, post, cfg.Visibility, cfg.Language)
		if err != nil {
			slog.Error("publishing entry", "link", entry.Link, "error", err)
			runErr = err
			break
		}

		watermark = entry.PublishedAt
		published++
		slog.Info("entry published", "link", entry.Link, "status_id", res.ID, "status_url", res.URL, "dry_run", cfg.DryRun)

		if plog != nil {
			if err := plog.Record(ctx, postlog.Rec{
				EntryLink:        entry.Link,
				EntryTitle:       entry.Title,
				EntryPublishedAt: entry.PublishedAt,
				StatusID:         res.ID,
				StatusURL:        res.URL,
			}); err != nil {
				slog.Warn("recording publish log", "link", entry.Link, "error", err)
			}
		}
	}

	// Persist progress from the entries that did succeed, even when the
	// batch stopped early. Dry runs never touch durable state.
	if !cfg.DryRun && watermark > initial {
		if err := st.Save(watermark); err != nil {
			if runErr == nil {
				runErr = err
			} else {
				slog.Error("saving state", "error", err)
			}
		}
	}

	slog.Info("run finished", "published", published, "watermark", watermark)
	return runErr
}
