// rscvd: the RustSyncCV clipboard sync daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustsynccv/rustsynccv-go/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	v := viper.New()

	root := &cobra.Command{
		Use:   "rscvd",
		Short: "RustSyncCV clipboard sync daemon",
		Long: `rscvd synchronises the system clipboard with other machines,
either through a relay server (connection_mode=server) or directly with
other instances on the same LAN (connection_mode=lan).

A local control socket exposes Start/Pause/Resume/Reload/Shutdown and a
status snapshot to cmd/rscvctl and other local tooling.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRunE:      func(cmd *cobra.Command, _ []string) error { return bindAndPrep(cmd, v) },
		RunE:         func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := root.Flags()
	f.String("server-url", "", "relay server WebSocket URL (ws:// or wss://)")
	f.String("token", "", "relay auth token")
	f.String("username", "", "relay auth username")
	f.String("password", "", "relay auth password")
	f.Int("max-image-kb", 512, "maximum PNG-encoded image size synced, in KB")
	f.String("connection-mode", "lan", "connection_mode: server|lan")
	f.String("lan-device-name", "", "device name announced on the LAN (default: hostname)")
	f.Bool("trust-insecure-cert", false, "accept any TLS certificate presented by the relay")
	f.String("lan-psk", "", "pre-shared key encrypting LAN mesh frames")
	addLoggingFlags(root)
	addConfigFlag(root)

	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("rscvd %s\n", Version)
		},
	}
}

func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

func setupLogging(v *viper.Viper) {
	noBackground := v.GetBool("no-background")
	interactive := noBackground || logging.IsTTY(os.Stderr)
	format := logging.ParseFormat(v.GetString("log-format"))
	if noBackground && format == logging.FormatAuto {
		format = logging.FormatText
	}
	levelStr := v.GetString("log-level")
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
