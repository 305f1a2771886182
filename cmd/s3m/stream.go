package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/internal/location"
	"github.com/s3m-go/s3m/stream"
)

func newStreamCmd(flags *globalFlags) *cobra.Command {
	var compress bool
	var encrypt bool
	var partSize int64

	cmd := &cobra.Command{
		Use:   "stream HOST/BUCKET/KEY",
		Short: "upload stdin as a single object, without knowing its size in advance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location.Parse(args[0], false)
			if err != nil {
				return err
			}
			target, host, err := flags.target(loc.Host, loc.Bucket)
			if err != nil {
				return err
			}

			opts := stream.Options{
				Compress:   compress || host.Compress,
				PartSize:   partSize,
				ScratchDir: flags.catalogDir(),
			}
			if encrypt {
				encKey, ok := host.EncryptionKey()
				if !ok {
					return fmt.Errorf("stream: --encrypt requires enc_key set on host %q", loc.Host)
				}
				opts.EncryptionKey = &encKey
			}

			progress := make(chan stream.ProgressEvent, 16)
			done := make(chan struct{})
			var bar interface{ Add64(int64) error }
			if !flags.quiet {
				bar = newBar(-1, "streaming "+loc.Key, false)
			}
			go func() {
				defer close(done)
				for ev := range progress {
					if bar != nil && ev.BytesSent > 0 {
						bar.Add64(ev.BytesSent)
					}
				}
			}()
			opts.Progress = progress

			etag, err := stream.Upload(context.Background(), target, flags.executor(), os.Stdin, loc.Key, opts)
			close(progress)
			<-done
			if err != nil {
				return err
			}
			fmt.Println(etag)
			return nil
		},
	}

	cmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress the stream before upload")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "ChaCha20-Poly1305-encrypt the stream using the host's enc_key")
	cmd.Flags().Int64Var(&partSize, "part-size", 0, "rolling part size in bytes (0: 512 MiB default)")
	return cmd
}
