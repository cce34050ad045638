package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sotboard/pkg/cli"
	"github.com/newtron-network/sotboard/pkg/journal"
	"github.com/newtron-network/sotboard/pkg/util"
)

var (
	journalDevice      string
	journalStep        string
	journalFailureOnly bool
	journalLimit       int
	journalOffset      int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the results of past runs",
	Long: `Show the onboarding journal. Every onboard or tags run opens one
journal; every step of every device is one entry.

Examples:
  sotboard journal list
  sotboard journal show                      # last run
  sotboard journal show <id> --failures
  sotboard journal show --device sw1 --step address`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journals",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournalForRead()
		if err != nil {
			return err
		}
		defer j.Close()

		metas, err := j.Journals(context.Background())
		if err != nil {
			return err
		}
		if len(metas) == 0 {
			fmt.Println("No journals")
			return nil
		}
		t := cli.NewTable("ID", "APP", "STATUS", "CREATED")
		for _, m := range metas {
			status := string(m.Status)
			if m.Status == journal.StatusActive {
				status = yellow(status)
			}
			t.Row(m.ID, m.App, status, m.CreatedAt.Local().Format(time.DateTime))
		}
		t.Flush()
		return nil
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show journal entries (default: last run)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := userSettings.LastJournal
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return fmt.Errorf("no journal id given and no last run recorded")
		}

		j, err := openJournalForRead()
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Entries(context.Background(), id, journal.Filter{
			Device:      journalDevice,
			Step:        journalStep,
			FailureOnly: journalFailureOnly,
			Limit:       journalLimit,
			Offset:      journalOffset,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No entries")
			return nil
		}

		t := cli.NewTable("TIME", "DEVICE", "STEP", "OBJECT", "STATUS", "MESSAGE")
		for _, e := range entries {
			t.Row(e.Timestamp.Local().Format(time.TimeOnly), e.Device, e.Step, e.Object, cli.Status(e.OK), e.Message)
		}
		t.Flush()
		return nil
	},
}

func init() {
	journalShowCmd.Flags().StringVar(&journalDevice, "device", "", "Only entries of this device")
	journalShowCmd.Flags().StringVar(&journalStep, "step", "", "Only entries of this step")
	journalShowCmd.Flags().BoolVar(&journalFailureOnly, "failures", false, "Only failed steps")
	journalShowCmd.Flags().IntVar(&journalLimit, "limit", 0, "Maximum number of entries")
	journalShowCmd.Flags().IntVar(&journalOffset, "offset", 0, "Entries to skip")
	journalCmd.AddCommand(journalListCmd, journalShowCmd)
}

func openJournalForRead() (journal.Journal, error) {
	j, err := cfg.OpenJournal(context.Background())
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("journal.driver is none: %w", util.ErrInvalidConfig)
	}
	return j, nil
}
