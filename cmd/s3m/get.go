package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/action"
	"github.com/s3m-go/s3m/internal/location"
)

func newGetCmd(flags *globalFlags) *cobra.Command {
	var head bool

	cmd := &cobra.Command{
		Use:   "get HOST/BUCKET/KEY",
		Short: "download an object, or with --head print its metadata only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location.Parse(args[0], false)
			if err != nil {
				return err
			}
			target, _, err := flags.target(loc.Host, loc.Bucket)
			if err != nil {
				return err
			}
			exec := flags.executor()
			ctx := context.Background()

			if head {
				meta, err := (action.HeadObject{Key: loc.Key}).Do(ctx, target, exec)
				if err != nil {
					return err
				}
				fmt.Printf("ETag: %s\nSize: %d\nLastModified: %s\nContentType: %s\n",
					meta.ETag, meta.Size, meta.LastModified, meta.ContentType)
				return nil
			}

			body, meta, err := (action.GetObject{Key: loc.Key}).Do(ctx, target, exec)
			if err != nil {
				return err
			}
			defer body.Close()

			out, err := os.Create(baseName(loc.Key))
			if err != nil {
				return err
			}
			defer out.Close()

			var bar interface{ Add64(int64) error }
			if !flags.quiet {
				bar = newBar(meta.Size, "downloading "+loc.Key, false)
			}
			var w io.Writer = out
			if bar != nil {
				w = io.MultiWriter(out, progressWriter{bar})
			}
			_, err = io.Copy(w, body)
			return err
		},
	}

	cmd.Flags().BoolVarP(&head, "head", "H", false, "retrieve metadata only, don't fetch the body")
	return cmd
}

type progressWriter struct {
	bar interface{ Add64(int64) error }
}

func (p progressWriter) Write(b []byte) (int, error) {
	p.bar.Add64(int64(len(b)))
	return len(b), nil
}
