// Package cli provides the command-line interface for feedtoot.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"feedtoot/internal/config"
	"feedtoot/internal/mastodon"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	flagConfigFile string
	flagStateFile  string
	flagMaxPosts   int
	flagTemplate   string
	flagHashtags   string
	flagMaxLength  int
	flagMaxImages  int
	flagVisibility string
	flagLanguage   string
	flagAPIBaseURL string
	flagPostLog    string
	flagDryRun     bool
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "feedtoot <feed_url>",
	Short: "Push new feed entries to a Mastodon instance",
	Long: "feedtoot fetches an RSS/Atom feed and publishes entries newer than the " +
		"persisted watermark as Mastodon statuses, at most once per entry. It is " +
		"meant to be driven by an external periodic trigger such as cron.",
	Args: cobra.ExactArgs(1),
	RunE: runAction,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("feedtoot %s (%s)\n", Version, Commit)
	},
}

func init() {
	apiBaseDefault := os.Getenv(mastodon.EnvAPIBaseURL)
	if apiBaseDefault == "" {
		apiBaseDefault = config.DefaultAPIBaseURL
	}

	f := rootCmd.Flags()
	f.StringVar(&flagConfigFile, "config", "", "optional YAML config file with post settings")
	f.StringVar(&flagStateFile, "state-file", config.DefaultStateFile, "file to store the publish watermark")
	f.IntVar(&flagMaxPosts, "max-posts", config.DefaultMaxPosts, "maximum number of posts to push per run")
	f.StringVar(&flagTemplate, "post-template", config.DefaultTemplate, "post template ({title}, {summary}, {content}, {link})")
	f.StringVar(&flagHashtags, "post-hashtags", "", "hashtags appended to every post")
	f.IntVar(&flagMaxLength, "post-max-length", config.DefaultMaxLength, "maximum post length")
	f.IntVar(&flagMaxImages, "post-max-images", config.DefaultMaxImages, "maximum images per post (at most 4)")
	f.StringVar(&flagVisibility, "post-visibility", config.DefaultVisibility, "post visibility: public, unlisted, private, direct")
	f.StringVar(&flagLanguage, "post-language", "", "ISO language code for posts")
	f.StringVar(&flagAPIBaseURL, "mastodon-api-base-url", apiBaseDefault, "Mastodon API base URL")
	f.StringVar(&flagPostLog, "post-log", "", "optional sqlite file recording published statuses")
	f.BoolVar(&flagDryRun, "dry-run", false, "select and compose but do not publish or save state")

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "increase output verbosity")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(historyCmd)
}

func setupLogging() {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(setupLogging)
	return rootCmd.Execute()
}
