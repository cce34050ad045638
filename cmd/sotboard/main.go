// Sotboard - source-of-truth onboarding for network devices
//
// Sotboard logs into devices (or reads their exported configuration),
// resolves per-device defaults from a prefix-keyed defaults document and
// writes the device, its interfaces, VLANs, prefixes, addresses and tags
// into the source of truth. Every write is reconciled: objects that already
// exist are reused, updated or reported, never duplicated.
//
// Examples:
//
//	sotboard onboard -d 10.0.0.1                    # onboard one device
//	sotboard onboard --inventory hosts.xlsx         # onboard an inventory
//	sotboard onboard -d sw1 --update --primary-only # refresh the primary interface
//	sotboard tags -d sw1                            # re-evaluate tag rules
//	sotboard defaults show 10.0.0.1                 # resolved defaults of an address
//	sotboard journal show                           # results of the last run
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/sotboard/pkg/cli"
	"github.com/newtron-network/sotboard/pkg/config"
	"github.com/newtron-network/sotboard/pkg/defaults"
	"github.com/newtron-network/sotboard/pkg/device"
	"github.com/newtron-network/sotboard/pkg/onboarding"
	"github.com/newtron-network/sotboard/pkg/platform"
	"github.com/newtron-network/sotboard/pkg/settings"
	"github.com/newtron-network/sotboard/pkg/sot"
	"github.com/newtron-network/sotboard/pkg/sot/memory"
	"github.com/newtron-network/sotboard/pkg/sot/nautobot"
	"github.com/newtron-network/sotboard/pkg/sot/redisdb"
	"github.com/newtron-network/sotboard/pkg/util"
	"github.com/newtron-network/sotboard/pkg/version"
)

var (
	// Global option flags
	configPath  string
	verbose     bool
	jsonLogging bool
	logFile     string

	// Global state
	userSettings *settings.Settings
	cfg          *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "sotboard",
	Short:             "Network device onboarding into the source of truth",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Sotboard onboards network devices into the source of truth.

Device properties come from the live device (or an exported configuration)
and from the defaults document, where every matching prefix contributes
its values and the most specific prefix wins.

  sotboard onboard -d <device> [--update] [--profile <name>]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if jsonLogging {
			util.SetJSONFormat()
		}
		if logFile != "" {
			if err := util.SetLogFile(logFile); err != nil {
				return err
			}
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if skipsConfig(cmd) {
			return nil
		}
		path := config.Path(configPath, userSettings.GetConfigPath())
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", path, err)
		}
		util.WithField("config", path).Debug("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (env "+config.EnvConfig+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogging, "log-json", false, "Log in JSON")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append log lines to a file instead of stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "onboard", Title: "Onboarding:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{onboardCmd, tagsCmd} {
		cmd.GroupID = "onboard"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{defaultsCmd, journalCmd} {
		cmd.GroupID = "inspect"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

// skipsConfig reports whether cmd runs without the configuration file.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "completion":
			return true
		}
	}
	return false
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sotboard " + version.Info())
	},
}

// ============================================================================
// Source of truth and session wiring
// ============================================================================

// openSoT connects to the configured source of truth. The returned client
// retries transient failures under the configured policy.
func openSoT(ctx context.Context) (sot.Client, func(), error) {
	var (
		client sot.Client
		closer = func() {}
	)
	switch cfg.SoT.Backend {
	case config.BackendMemory:
		client = memory.New()
	case config.BackendRedis:
		rc := redisdb.New(redisdb.Options{
			Addr:     cfg.SoT.Redis.Addr,
			Password: cfg.SoT.Redis.Password,
			DB:       cfg.SoT.Redis.DB,
		})
		if err := rc.Connect(ctx); err != nil {
			return nil, nil, err
		}
		client = rc
		closer = func() { rc.Close() }
	case config.BackendNautobot:
		nc, err := nautobot.New(nautobot.Options{
			URL:       cfg.SoT.URL,
			Token:     cfg.SoT.Token,
			SSLVerify: cfg.SSLVerify(),
			Timeout:   cfg.SoT.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		client = nc
	default:
		return nil, nil, fmt.Errorf("unknown sot backend '%s': %w", cfg.SoT.Backend, util.ErrInvalidConfig)
	}
	util.WithField("backend", cfg.SoT.Backend).Debug("source of truth ready")
	return sot.WithRetry(client, cfg.RetryPolicy()), closer, nil
}

// sessionFlags are shared by the commands that talk to devices.
type sessionFlags struct {
	profile string
	port    int
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profile, "profile", "", "Login profile (default from settings or config)")
	cmd.Flags().IntVar(&f.port, "port", 0, "SSH port (default from config)")
}

// newSession builds an onboarding session from the configuration.
func newSession(client sot.Client, flags sessionFlags, needLogin bool) (*onboarding.Session, error) {
	profileName := flags.profile
	if profileName == "" {
		profileName = userSettings.DefaultProfile
	}
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}
	if needLogin && profile.Password == "" {
		if profile, err = promptCredentials(profile); err != nil {
			return nil, err
		}
	}
	rules, err := cfg.TagRules()
	if err != nil {
		return nil, err
	}

	port := cfg.Onboarding.Port
	if flags.port > 0 {
		port = flags.port
	}

	return &onboarding.Session{
		Client:     client,
		Registry:   platform.Builtin(cfg.Provider()),
		Defaults:   defaults.NewMerger(cfg.DefaultsSource()),
		Options:    cfg.Options(),
		Candidates: cfg.Onboarding.PrimaryInterfaces,
		TagRules:   rules,
		Profile:    profile,
		Port:       port,
		Importer:   cfg.Importer(),
		ExportDir:  cfg.Onboarding.ExportDir,
	}, nil
}

// promptCredentials asks for the login the profile lacks. Without a
// terminal there is nobody to ask and the profile is used as is.
func promptCredentials(p device.Profile) (device.Profile, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p, nil
	}
	if p.Username == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		var user string
		if _, err := fmt.Fscanln(os.Stdin, &user); err != nil {
			return p, fmt.Errorf("reading username: %w", err)
		}
		p.Username = strings.TrimSpace(user)
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", p.Username)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return p, fmt.Errorf("reading password: %w", err)
	}
	p.Password = string(pw)
	return p, nil
}

// ============================================================================
// Output helpers
// ============================================================================

func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
