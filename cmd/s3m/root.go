package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/aws"
	"github.com/s3m-go/s3m/internal/config"
	"github.com/s3m-go/s3m/s3m"
	"github.com/s3m-go/s3m/transport"
)

// globalFlags carries the persistent flags every subcommand reads,
// mirroring the single `matches`/`globals.rs` struct the Rust CLI
// threads through its dispatch tree.
type globalFlags struct {
	configPath string
	tmpDir     string
	quiet      bool
	logLevel   string
	bandwidth  int64
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "s3m",
		Short:         "upload, download, and manage objects on S3-compatible endpoints",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultPath(), "path to the hosts.yml host config")
	root.PersistentFlags().StringVar(&flags.tmpDir, "tmp-dir", "", "directory for the resumable-upload catalog and stream scratch files (default: OS temp dir)")
	root.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "don't show a progress bar")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().Int64Var(&flags.bandwidth, "bandwidth", 0, "throttle transfer rate in bytes/sec (0: unlimited)")

	root.AddCommand(
		newPutCmd(flags),
		newGetCmd(flags),
		newLsCmd(flags),
		newRmCmd(flags),
		newShareCmd(flags),
		newStreamCmd(flags),
		newCbCmd(flags),
	)
	return root
}

func (f *globalFlags) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(f.logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(level).With().Timestamp().Logger()
}

func (f *globalFlags) executor() *transport.Executor {
	opts := []transport.Option{transport.WithLogger(f.logger())}
	if f.bandwidth > 0 {
		opts = append(opts, transport.WithBandwidthLimit(f.bandwidth))
	}
	return transport.NewExecutor(nil, opts...)
}

// target resolves alias (the host field of a parsed location) against
// the host config and returns the signing target for bucket.
func (f *globalFlags) target(alias, bucket string) (*s3m.Target, config.Host, error) {
	host, err := config.Find(f.configPath, alias)
	if err != nil {
		return nil, config.Host{}, err
	}
	if bucket == "" {
		bucket = host.Bucket
	}
	region := host.Region
	if region == "" {
		region = "us-east-1"
	}
	key := aws.DeriveKey(host.Endpoint, host.AccessKey, host.SecretKey, region, "s3")
	return s3m.New(key, bucket), host, nil
}

func (f *globalFlags) catalogDir() string {
	if f.tmpDir != "" {
		return f.tmpDir
	}
	return os.TempDir()
}
