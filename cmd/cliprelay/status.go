package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliprelay/internal/ipc"
	"go.klb.dev/cliprelay/internal/logging"
	"go.klb.dev/cliprelay/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's sync state",
		Long: `Displays the running daemon's state, the last synced clipboard content
and the outcome of the last sync cycle.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd.Context(), v) },
	}

	cmd.Flags().Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(ctx context.Context, v *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := ipc.Call(ctx, &message.Message{Type: message.TypeStatus, Source: defaultSource()})
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(resp)
	return nil
}

func printStatus(resp *message.Message) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	defer w.Flush()

	state := color.New(color.FgGreen).Sprint(resp.State)
	if resp.State != "idle" {
		state = color.New(color.FgYellow).Sprint(resp.State)
	}
	fmt.Fprintf(w, "State:\t%s\n", state)
	fmt.Fprintf(w, "Socket:\t%s\n", ipc.SocketPath())
	if resp.Remote != "" {
		fmt.Fprintf(w, "Remote:\t%s\n", resp.Remote)
	}
	if d := resp.Current; d != nil {
		fmt.Fprintf(w, "Clipboard:\t%s %s\n", d.Type, logging.Preview(d.Clipboard, 60))
		if d.File != "" {
			fmt.Fprintf(w, "Payload:\t%s\n", d.File)
		}
	} else {
		fmt.Fprintf(w, "Clipboard:\t-\n")
	}
	if resp.LastSync.IsZero() {
		fmt.Fprintf(w, "Last sync:\tnever\n")
	} else {
		fmt.Fprintf(w, "Last sync:\t%s (%s)\n", resp.LastSync.Local().Format(time.RFC3339), fmtAge(resp.LastSync))
	}
	if resp.LastErr != "" {
		fmt.Fprintf(w, "Last error:\t%s\n", color.RedString(resp.LastErr))
	}
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
