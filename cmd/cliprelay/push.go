package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliprelay/internal/ipc"
	"go.klb.dev/cliprelay/internal/logging"
	"go.klb.dev/cliprelay/internal/message"
	"go.klb.dev/cliprelay/internal/profile"
)

func newPushCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload the clipboard (or stdin) to the remote",
		Long: `Uploads the current clipboard to the remote now, without waiting for a
change notification. With --stdin the text read from stdin is uploaded instead
of the clipboard:

  echo hello | cliprelay push --stdin

If a local daemon is running the request goes through its control socket.
Otherwise a one-shot sync runs with the configured remote.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPush(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.Bool("stdin", false, "upload text read from stdin")
	f.Bool("direct", false, "skip the daemon and talk to the remote directly")
	addRemoteFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runPush(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)
	if ctx == nil {
		ctx = context.Background()
	}

	var text *string
	if v.GetBool("stdin") {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		s := string(data)
		text = &s
	}

	if !v.GetBool("direct") && ipc.IsRunning() {
		resp, err := ipc.Call(ctx, &message.Message{Type: message.TypePush, Source: defaultSource(), Text: text})
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		printDescriptor(resp.Applied)
		return nil
	}

	eng, err := newEngine(v, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	if text != nil {
		err = eng.ctrl.Push(ctx, profile.NewText(*text))
	} else {
		err = eng.ctrl.LocalChanged(ctx)
	}
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	printDescriptor(eng.ctrl.Status().Current)
	return nil
}

func printDescriptor(d *message.Descriptor) {
	if d == nil {
		fmt.Println("nothing synced")
		return
	}
	fmt.Printf("%s: %s\n", d.Type, logging.Preview(d.Clipboard, logging.PreviewRunes))
}

func defaultSource() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
