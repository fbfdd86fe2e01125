package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect fieldparty configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE:  a.runConfigShow,
	})
	return configCmd
}

func (a *app) runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if used := a.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Config file: %s\n", used)
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "storage:")
	fmt.Fprintf(out, "  driver: %s\n", cfg.Storage.Driver)
	fmt.Fprintf(out, "  sqlite_path: %s\n", cfg.Storage.SQLitePath)
	fmt.Fprintf(out, "  postgres_dsn: %s\n", redact(cfg.Storage.PostgresDSN))
	fmt.Fprintf(out, "  codec: %s\n", cfg.Storage.Codec)

	fmt.Fprintln(out, "sessions:")
	fmt.Fprintf(out, "  max_attempts: %d\n", cfg.Sessions.MaxAttempts)
	fmt.Fprintf(out, "  retry_backoff: %s\n", cfg.Sessions.RetryBackoff)

	fmt.Fprintln(out, "blob:")
	fmt.Fprintf(out, "  driver: %s\n", cfg.Blob.Driver)
	fmt.Fprintf(out, "  fs_root: %s\n", cfg.Blob.FSRoot)
	fmt.Fprintf(out, "  s3.bucket: %s\n", cfg.Blob.S3.Bucket)
	fmt.Fprintf(out, "  s3.region: %s\n", cfg.Blob.S3.Region)
	fmt.Fprintf(out, "  s3.endpoint: %s\n", cfg.Blob.S3.Endpoint)
	fmt.Fprintf(out, "  s3.prefix: %s\n", cfg.Blob.S3.Prefix)
	fmt.Fprintf(out, "  s3.access_key_id: %s\n", cfg.Blob.S3.AccessKeyID)
	fmt.Fprintf(out, "  s3.secret_access_key: %s\n", redact(cfg.Blob.S3.SecretAccessKey))
	fmt.Fprintf(out, "  s3.path_style: %v\n", cfg.Blob.S3.PathStyle)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.Dir)

	fmt.Fprintln(out, "metrics:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(out, "  trace_file: %s\n", cfg.Metrics.TraceFile)
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
