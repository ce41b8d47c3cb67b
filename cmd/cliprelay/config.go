package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliprelay/internal/logging"
	"go.klb.dev/cliprelay/internal/remote"
	"go.klb.dev/cliprelay/internal/retry"
	"go.klb.dev/cliprelay/internal/syncer"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPRELAY_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPRELAY_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("cliprelay")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/cliprelay/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/cliprelay", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addRemoteFlags adds the flags that locate and shape the remote store.
func addRemoteFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("remote", "", "remote store URL: https://host/dav/path, file:///dir or mem://")
	f.String("user", "", "remote user name")
	f.String("password", "", "remote password")
	f.String("token", "", "shared secret; when set every remote object is encrypted")
	f.Duration("timeout", 30*time.Second, "remote request timeout")
	f.String("profile-path", syncer.DefaultProfilePath, "descriptor path on the remote")
	f.String("payload-dir", syncer.DefaultPayloadDir, "payload directory on the remote")
	f.String("temp-dir", "", "where downloaded files are written (default: system temp)")
	f.Int64("max-payload", syncer.DefaultMaxPayload, "largest payload to upload, in bytes")
	f.Int("retries", syncer.DefaultRetry.Retries, "transfer retries per sync cycle")
	f.Duration("retry-delay", syncer.DefaultRetry.Delay, "initial delay between transfer retries")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

func remoteConfig(v *viper.Viper) remote.Config {
	return remote.Config{
		URL:      v.GetString("remote"),
		User:     v.GetString("user"),
		Password: v.GetString("password"),
		Token:    v.GetString("token"),
		Timeout:  v.GetDuration("timeout"),
	}
}

func syncConfig(v *viper.Viper) syncer.Config {
	delay := v.GetDuration("retry-delay")
	return syncer.Config{
		ProfilePath:      v.GetString("profile-path"),
		PayloadDir:       v.GetString("payload-dir"),
		TempDir:          v.GetString("temp-dir"),
		MaxPayload:       v.GetInt64("max-payload"),
		Retry:            retry.Exponential(v.GetInt("retries"), delay, max(delay, syncer.DefaultRetry.MaxDelay)),
		Push:             v.GetBool("push"),
		Pull:             v.GetBool("pull"),
		Poll:             v.GetDuration("poll"),
		DownloadWebImage: v.GetBool("download-web-image"),
		RemoteName:       redactURL(v.GetString("remote")),
	}
}

// redactURL drops credentials embedded in a remote URL before it is shown.
func redactURL(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		rest := s[i+3:]
		if at := strings.Index(rest, "@"); at >= 0 && at < strings.IndexAny(rest+"/", "/") {
			return s[:i+3] + rest[at+1:]
		}
	}
	return s
}
