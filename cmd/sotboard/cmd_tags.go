package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sotboard/pkg/onboarding"
)

var (
	tagsDevices   []string
	tagsInventory string
	tagsImport    bool
	tagsSession   sessionFlags
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Apply tag rules to devices already onboarded",
	Long: `Evaluate the configured tag rules against each device's configuration
and add the matching tags. Existing tags are kept.

Examples:
  sotboard tags -d sw1
  sotboard tags --inventory branch.csv --import`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := inventoryRows(tagsDevices, tagsInventory)
		if err != nil {
			return err
		}
		ctx := context.Background()
		client, closeSoT, err := openSoT(ctx)
		if err != nil {
			return err
		}
		defer closeSoT()

		session, err := newSession(client, tagsSession, !tagsImport)
		if err != nil {
			return err
		}
		rec, finish, err := openRecorder(ctx, "tags", false)
		if err != nil {
			return err
		}
		if rec != nil {
			session.Recorder = rec
		}

		mode := onboarding.Mode{Import: tagsImport}
		results := make([]*onboarding.Result, 0, len(rows))
		for _, row := range rows {
			results = append(results, session.Tag(ctx, row, mode))
		}
		finish()
		return printResults(results)
	},
}

func init() {
	tagsCmd.Flags().StringSliceVarP(&tagsDevices, "device", "d", nil, "Device hostname or address (repeatable)")
	tagsCmd.Flags().StringVarP(&tagsInventory, "inventory", "f", "", "Inventory file (csv, yaml or xlsx)")
	tagsCmd.Flags().BoolVar(&tagsImport, "import", false, "Read exported configurations instead of logging in")
	tagsSession.register(tagsCmd)
}
