// cliprelay: clipboard sync through a shared remote store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/cliprelay/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cliprelay",
		Short: "Clipboard sync through a WebDAV or file remote",
		Long: `cliprelay keeps the system clipboard of several machines in sync through
a shared remote store (a WebDAV server, a synced folder, or memory for tests).
Text, images and files are supported; a small JSON descriptor on the remote
names the latest clipboard content and the payload that carries it.

Run "cliprelay daemon" on each machine. Use "cliprelay push/pull/status" to
drive a running daemon over its local control socket.

Config file search order (first found wins):
  /etc/cliprelay/cliprelay.toml
  $HOME/.config/cliprelay/cliprelay.toml
  path supplied via --config

All flags can be set via CLIPRELAY_<FLAG> env vars or config-file keys.
See "cliprelay daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newPushCmd(),
		newPullCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

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
			fmt.Printf("cliprelay %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
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
