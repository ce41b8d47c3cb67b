package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliprelay/internal/ipc"
	"go.klb.dev/cliprelay/internal/message"
)

func newPullCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Apply the remote clipboard locally",
		Long: `Fetches the remote descriptor and applies its content to the local
clipboard if it differs from what was last synced. With --print the synced
text is also written to stdout (like pbpaste).

If a local daemon is running the request goes through its control socket.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPull(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.Bool("print", false, "write the synced text to stdout")
	f.Bool("direct", false, "skip the daemon and talk to the remote directly")
	addRemoteFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runPull(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)
	if ctx == nil {
		ctx = context.Background()
	}

	var applied *message.Descriptor
	if !v.GetBool("direct") && ipc.IsRunning() {
		resp, err := ipc.Call(ctx, &message.Message{Type: message.TypePull, Source: defaultSource()})
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		applied = resp.Applied
	} else {
		eng, err := newEngine(v, nil)
		if err != nil {
			return err
		}
		defer eng.Close()
		if err := eng.ctrl.RemoteChanged(ctx); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		applied = eng.ctrl.Status().Current
	}

	if !v.GetBool("print") {
		printDescriptor(applied)
		return nil
	}
	if applied != nil && applied.Type == message.KindText {
		fmt.Print(applied.Clipboard)
	}
	return nil
}
