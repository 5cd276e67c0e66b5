package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"feedtoot/internal/postlog"
)

var (
	historyPostLog string
	historyCount   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently published statuses from the publish log",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().StringVar(&historyPostLog, "post-log", "", "sqlite file recording published statuses")
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 20, "number of records to show")
}

func historyAction(cmd *cobra.Command, _ []string) error {
	if historyPostLog == "" {
		return errors.New("--post-log is required")
	}

	plog, err := postlog.Open(historyPostLog)
	if err != nil {
		return fmt.Errorf("open publish log: %w", err)
	}
	defer func() { _ = plog.Close() }()

	recs, err := plog.Recent(cmd.Context(), historyCount)
	if err != nil {
		return fmt.Errorf("read publish log: %w", err)
	}

	if len(recs) == 0 {
		fmt.Println("No published statuses recorded.")
		return nil
	}

	for _, rec := range recs {
		fmt.Printf("%s  %s\n    entry:  %s\n    status: %s\n",
			rec.PostedAt.Local().Format(time.DateTime),
			rec.EntryTitle,
			rec.EntryLink,
			rec.StatusURL,
		)
	}
	return nil
}
