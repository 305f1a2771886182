package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/action"
	"github.com/s3m-go/s3m/internal/location"
)

func newLsCmd(flags *globalFlags) *cobra.Command {
	var prefix string
	var delimiter string

	cmd := &cobra.Command{
		Use:   "ls HOST[/BUCKET]",
		Short: "list objects in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location.Parse(args[0], true)
			if err != nil {
				return err
			}
			target, _, err := flags.target(loc.Host, loc.Bucket)
			if err != nil {
				return err
			}
			exec := flags.executor()

			result, err := (action.ListObjectsV2{Prefix: prefix, Delimiter: delimiter}).Do(cmd.Context(), target, exec)
			if err != nil {
				return err
			}
			for _, p := range result.CommonPrefixes {
				fmt.Printf("%12s  %s\n", "PRE", p)
			}
			for _, obj := range result.Contents {
				fmt.Printf("%12d  %s  %s\n", obj.Size, obj.LastModified, obj.Key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys beginning with prefix")
	cmd.Flags().StringVar(&delimiter, "delimiter", "/", "group keys sharing a prefix up to delimiter")
	return cmd
}
