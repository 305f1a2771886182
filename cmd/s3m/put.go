package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/digest"
	"github.com/s3m-go/s3m/engine"
	"github.com/s3m-go/s3m/internal/location"
)

func newPutCmd(flags *globalFlags) *cobra.Command {
	var acl string
	var meta []string
	var checksumAlgorithm string
	var partSize int64
	var number int
	var retries int

	cmd := &cobra.Command{
		Use:   "put FILE HOST/BUCKET/KEY",
		Short: "upload a file, resuming a prior multipart session when possible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, locStr := args[0], args[1]
			loc, err := location.Parse(locStr, false)
			if err != nil {
				return err
			}
			if loc.Key == "" {
				loc.Key = baseName(file)
			}

			target, _, err := flags.target(loc.Host, loc.Bucket)
			if err != nil {
				return err
			}
			algo, err := digest.ParseAlgorithm(checksumAlgorithm)
			if err != nil {
				return err
			}

			progress := make(chan engine.ProgressEvent, 16)
			done := make(chan struct{})
			var bar interface{ Add64(int64) error }
			if !flags.quiet {
				b := newBar(0, "uploading "+loc.Key, false)
				bar = b
			}
			go func() {
				defer close(done)
				for ev := range progress {
					if bar != nil && ev.BytesSent > 0 {
						bar.Add64(ev.BytesSent)
					}
				}
			}()

			etag, err := engine.Upload(context.Background(), target, flags.executor(), loc.Key, file, engine.Options{
				ACL:                acl,
				Meta:               parseMeta(meta),
				AdditionalChecksum: algo,
				PartSize:           partSize,
				MaxConcurrent:      number,
				Retries:            retries,
				CatalogDir:         flags.catalogDir(),
				Progress:           progress,
			})
			close(progress)
			<-done
			if err != nil {
				return err
			}
			fmt.Println(etag)
			return nil
		},
	}

	cmd.Flags().StringVarP(&acl, "acl", "a", "", "canned ACL to apply to the object")
	cmd.Flags().StringSliceVarP(&meta, "meta", "m", nil, "x-amz-meta-* header as key=value, repeatable")
	cmd.Flags().StringVar(&checksumAlgorithm, "checksum-algorithm", "", "additional checksum: crc32, crc32c, sha1, sha256")
	cmd.Flags().Int64Var(&partSize, "part-size", 0, "requested part size in bytes (0: planner default)")
	cmd.Flags().IntVarP(&number, "number", "n", 0, "max concurrent part uploads (0: NumCPU-2)")
	cmd.Flags().IntVarP(&retries, "retries", "r", 0, "per-part retry attempts (0: default 3)")
	return cmd
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func parseMeta(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
