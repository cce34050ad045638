package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sotboard/pkg/cli"
	"github.com/newtron-network/sotboard/pkg/inventory"
	"github.com/newtron-network/sotboard/pkg/journal"
	"github.com/newtron-network/sotboard/pkg/onboarding"
	"github.com/newtron-network/sotboard/pkg/util"
)

var (
	onboardDevices   []string
	onboardInventory string
	onboardMode      onboarding.Mode
	onboardSession   sessionFlags
	onboardNoJournal bool
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard devices into the source of truth",
	Long: `Onboard devices given with -d or listed in an inventory file.

Devices already in the source of truth are skipped unless --update is set.
An update refreshes the primary interface and address; --interfaces also
refreshes every other interface.

Inventories are CSV, YAML or XLSX. Rows with ignore set are skipped.

Examples:
  sotboard onboard -d 10.0.0.1 -d sw2.example.net
  sotboard onboard --inventory branch.csv --profile lab
  sotboard onboard -d sw1 --update --interfaces
  sotboard onboard --inventory branch.csv --import`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := inventoryRows(onboardDevices, onboardInventory)
		if err != nil {
			return err
		}
		if onboardMode.PrimaryOnly && onboardMode.Interfaces {
			return fmt.Errorf("--primary-only and --interfaces are mutually exclusive")
		}
		if onboardMode.Import && cfg.Importer() == nil {
			return fmt.Errorf("--import requires onboarding.import_dir: %w", util.ErrInvalidConfig)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client, closeSoT, err := openSoT(ctx)
		if err != nil {
			return err
		}
		defer closeSoT()

		session, err := newSession(client, onboardSession, !onboardMode.Import)
		if err != nil {
			return err
		}

		rec, finish, err := openRecorder(ctx, "onboard", onboardNoJournal)
		if err != nil {
			return err
		}
		if rec != nil {
			session.Recorder = rec
		}
		results := session.Run(ctx, rows, onboardMode)
		finish()

		return printResults(results)
	},
}

func init() {
	onboardCmd.Flags().StringSliceVarP(&onboardDevices, "device", "d", nil, "Device hostname or address (repeatable)")
	onboardCmd.Flags().StringVarP(&onboardInventory, "inventory", "f", "", "Inventory file (csv, yaml or xlsx)")
	onboardCmd.Flags().BoolVar(&onboardMode.Update, "update", false, "Update devices already in the source of truth")
	onboardCmd.Flags().BoolVar(&onboardMode.Interfaces, "interfaces", false, "With --update, refresh every interface")
	onboardCmd.Flags().BoolVar(&onboardMode.PrimaryOnly, "primary-only", false, "With --update, refresh only the primary interface")
	onboardCmd.Flags().BoolVar(&onboardMode.Import, "import", false, "Read exported configurations instead of logging in")
	onboardCmd.Flags().BoolVar(&onboardNoJournal, "no-journal", false, "Do not record results in the journal")
	onboardSession.register(onboardCmd)
}

// inventoryRows returns the rows of the inventory file, or of the devices
// given on the command line.
func inventoryRows(devices []string, path string) ([]inventory.Row, error) {
	switch {
	case path != "" && len(devices) > 0:
		return nil, fmt.Errorf("--device and --inventory are mutually exclusive")
	case path != "":
		opts, err := cfg.InventoryOptions()
		if err != nil {
			return nil, err
		}
		return inventory.ReadFile(path, opts)
	case len(devices) > 0:
		return inventory.Devices(devices), nil
	}
	return nil, fmt.Errorf("no devices: use --device or --inventory")
}

// openRecorder opens a journal for the run. The returned finish closes the
// journal and remembers it as the last one.
func openRecorder(ctx context.Context, app string, disabled bool) (*journal.Recorder, func(), error) {
	noop := func() {}
	if disabled {
		return nil, noop, nil
	}
	j, err := cfg.OpenJournal(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("opening journal: %w", err)
	}
	if j == nil {
		return nil, noop, nil
	}
	rec, err := journal.NewRecorder(ctx, j, app)
	if err != nil {
		j.Close()
		return nil, nil, fmt.Errorf("opening journal: %w", err)
	}
	finish := func() {
		// the run may have been interrupted, the journal is closed regardless
		if err := rec.Finish(context.Background()); err != nil {
			util.Warnf("Could not close journal %s: %v", rec.ID(), err)
		}
		j.Close()
		userSettings.LastJournal = rec.ID()
		if err := userSettings.Save(); err != nil {
			util.Warnf("Could not save settings: %v", err)
		}
	}
	return rec, finish, nil
}

// printResults prints one line per device, and every step with -v. It
// returns an error when any device failed.
func printResults(results []*onboarding.Result) error {
	t := cli.NewTable("DEVICE", "ID", "STATUS", "DETAIL")
	failed := 0
	for _, res := range results {
		status, detail := green("ok"), fmt.Sprintf("%d steps", len(res.Steps))
		switch {
		case res.Err != nil:
			status, detail = red("ABORTED"), res.Err.Error()
			failed++
		case !res.OK():
			f := res.Failures()
			status, detail = yellow("PARTIAL"), fmt.Sprintf("%d of %d steps failed", len(f), len(res.Steps))
			failed++
		}
		t.Row(bold(res.Device), res.DeviceID, status, detail)
	}
	t.Flush()

	for _, res := range results {
		steps := res.Failures()
		if verbose {
			steps = res.Steps
		}
		if len(steps) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", bold(res.Device))
		st := cli.NewTable("STEP", "OBJECT", "STATUS", "MESSAGE").WithPrefix("  ")
		for _, s := range steps {
			st.Row(cli.DotPad(string(s.Step), 12), s.Object, cli.Status(s.OK), s.Message)
		}
		st.Flush()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d devices failed", failed, len(results))
	}
	return nil
}
