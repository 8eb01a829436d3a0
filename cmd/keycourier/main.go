// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for keycourier using the
// Cobra library. It owns argument parsing, configuration resolution and
// exit-code mapping; the actual deployment work lives in
// internal/transmit.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"keycourier/internal/config"
	"keycourier/internal/i18n"
	"keycourier/internal/input"
	"keycourier/internal/logging"
	"keycourier/internal/netx"
	"keycourier/internal/security"
	"keycourier/internal/transmit"
)

var version = "dev" // this will be set by the linker

var cfgFile string

const banner = `keycourier - idempotent SSH public key distribution`

// appConfig is the resolved configuration after merging defaults, the
// config file, environment variables and flags.
type appConfig struct {
	Username   string   `mapstructure:"username" yaml:"username"`
	Password   string   `mapstructure:"password" yaml:"password"`
	PubKey     string   `mapstructure:"pub-key" yaml:"pub-key"`
	Hosts      []string `mapstructure:"hosts" yaml:"hosts,omitempty"`
	HostsFile  string   `mapstructure:"hosts-file" yaml:"hosts-file,omitempty"`
	SocksHost  string   `mapstructure:"socks-host" yaml:"socks-host,omitempty"`
	SocksPort  int      `mapstructure:"socks-port" yaml:"socks-port,omitempty"`
	KnownHosts string   `mapstructure:"known-hosts" yaml:"known-hosts,omitempty"`
	Timeout    int      `mapstructure:"timeout" yaml:"timeout"`
	Language   string   `mapstructure:"lang" yaml:"lang"`
	Debug      bool     `mapstructure:"debug" yaml:"debug"`
}

func configDefaults() map[string]any {
	return map[string]any{
		"timeout": 10,
		"lang":    "en",
	}
}

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command. This
// function is used for the main application command as well as fresh
// instances for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keycourier",
		Short: "Keycourier pushes a public key into remote authorized_keys files over SSH.",
		Long: `Keycourier distributes a single SSH public key to a set of remote hosts,
optionally through a SOCKS5 proxy. The deployment is idempotent: missing
~/.ssh directories and authorized_keys files are bootstrapped with the
right permissions, and a key that is already present is never duplicated.
One unreachable or misconfigured host never aborts the rest of the batch.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransmit(cmd)
		},
	}

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is keycourier.yaml in the user config dir or current dir)")
	cmd.Flags().StringSlice("hosts", nil, "host(s) to transmit the public key to, as host or host:port")
	cmd.Flags().String("hosts-file", "", "path to a whitespace-delimited file with target hosts")
	cmd.Flags().StringP("username", "u", "", "auth username")
	cmd.Flags().StringP("password", "p", "", "auth password")
	cmd.Flags().String("pub-key", "", "path to the public key to transmit")
	cmd.Flags().String("socks-host", "", "SOCKS5 proxy host")
	cmd.Flags().Int("socks-port", 0, "SOCKS5 proxy port")
	cmd.Flags().String("known-hosts", "", "known_hosts file for trust-on-first-use host keys (default ~/.ssh/keycourier_known_hosts)")
	cmd.Flags().Int("timeout", 10, "connect/handshake timeout in seconds")
	cmd.Flags().String("lang", "en", `message language ("en", "de")`)
	cmd.Flags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// runTransmit resolves configuration, validates the input contract and
// drives the deployment engine.
func runTransmit(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig[appConfig](cmd, configDefaults(), &cfgFile)
	if err != nil {
		return err
	}

	i18n.Init(cfg.Language)
	logging.SetDebug(cfg.Debug)

	if cfg.Username == "" || cfg.Password == "" || cfg.PubKey == "" {
		_ = cmd.Help()
		return errors.New(i18n.T("cli.missing_required"))
	}
	if len(cfg.Hosts) == 0 && cfg.HostsFile == "" {
		_ = cmd.Help()
		return errors.New(i18n.T("cli.missing_hosts"))
	}

	fmt.Println(banner)

	// Fail fast on local reads before any host is contacted.
	key, err := input.ReadPublicKey(cfg.PubKey)
	if err != nil {
		return err
	}
	targets, err := input.CollectTargets(cfg.Hosts, cfg.HostsFile)
	if err != nil {
		return err
	}

	password := security.Secret(cfg.Password)
	defer password.Zero()

	timeout := time.Duration(cfg.Timeout) * time.Second
	proxy := &netx.SocksProxy{Host: cfg.SocksHost, Port: cfg.SocksPort, Timeout: timeout}
	hostKeys := transmit.NewHostKeyStore(knownHostsPath(cfg.KnownHosts))

	transmitter := transmit.New(cfg.Username, password, key, cfg.PubKey, targets, proxy, hostKeys)
	transmitter.Config.ConnectTimeout = timeout

	failed, err := transmitter.Deploy()
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf(i18n.T("cli.failed_hosts"), len(failed))
	}
	return nil
}

// knownHostsPath resolves the known_hosts location, preferring the
// configured path.
func knownHostsPath(configured string) string {
	if configured != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "keycourier_known_hosts"
	}
	return filepath.Join(home, ".ssh", "keycourier_known_hosts")
}

// newConfigCmd provides `keycourier config init` to write a starter
// configuration file.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the keycourier configuration file",
	}

	var system bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig{Timeout: 10, Language: "en"}
			path, err := config.WriteConfigFile(&cfg, system)
			if err != nil {
				return err
			}
			logging.Infof(i18n.T("cli.config_written"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&system, "system", false, "write the system-wide configuration instead of the user one")

	cmd.AddCommand(initCmd)
	return cmd
}

// newVersionCmd provides a lightweight `keycourier version` subcommand so
// users and CI can query the build.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			resolved := version
			if info, ok := debug.ReadBuildInfo(); ok {
				if info.Main.Version != "" && info.Main.Version != "(devel)" {
					resolved = info.Main.Version
				}
			}
			fmt.Printf("keycourier %s\n", resolved)
		},
	}
}
