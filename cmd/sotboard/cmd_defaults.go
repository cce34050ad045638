package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/sotboard/pkg/config"
	"github.com/newtron-network/sotboard/pkg/defaults"
	"github.com/newtron-network/sotboard/pkg/util"
)

var defaultsRow []string

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Inspect and publish the defaults document",
	Long: `Inspect the defaults a device would get, or publish a new defaults
document to etcd.

Examples:
  sotboard defaults show 10.1.2.3
  sotboard defaults show 10.1.2.3 --row role=core --row platform=nxos
  sotboard defaults push defaults.yaml`,
}

var defaultsShowCmd = &cobra.Command{
	Use:   "show <ip>",
	Short: "Show the resolved defaults of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ip := args[0]
		if !util.IsValidIP(ip) {
			return fmt.Errorf("'%s' is not an IP address", ip)
		}
		row, err := parseRow(defaultsRow)
		if err != nil {
			return err
		}

		ctx := context.Background()
		m := defaults.NewMerger(cfg.DefaultsSource())
		path, err := m.Path(ctx, ip)
		if err != nil {
			return err
		}
		dd, err := m.Merge(ctx, ip, row)
		if err != nil {
			return err
		}

		fmt.Printf("Prefixes: %s\n\n", bold(strings.Join(path, " > ")))
		out, err := yaml.Marshal(map[string]interface{}(dd))
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var defaultsPushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Publish a defaults document to etcd",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, ok := cfg.DefaultsSource().(*defaults.EtcdSource)
		if !ok {
			return fmt.Errorf("defaults.source is not %s: %w", config.SourceEtcd, util.ErrInvalidConfig)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		rev, err := src.Publish(context.Background(), data)
		if err != nil {
			return err
		}
		fmt.Printf("Published %s (revision %d)\n", args[0], rev)
		return nil
	},
}

func init() {
	defaultsShowCmd.Flags().StringArrayVar(&defaultsRow, "row", nil, "Inventory column as key=value (repeatable)")
	defaultsCmd.AddCommand(defaultsShowCmd, defaultsPushCmd)
}

// parseRow turns key=value pairs into an inventory row.
func parseRow(pairs []string) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --row '%s': want key=value", p)
		}
		row[k] = v
	}
	return row, nil
}
