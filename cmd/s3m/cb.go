package main

import (
	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/action"
	"github.com/s3m-go/s3m/internal/location"
)

func newCbCmd(flags *globalFlags) *cobra.Command {
	var acl string

	cmd := &cobra.Command{
		Use:   "cb HOST/BUCKET",
		Short: "create a bucket",
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
			_ = acl // CreateBucket's wire request carries no ACL; kept for CLI parity.
			return (action.CreateBucket{Region: host.Region}).Do(cmd.Context(), target, flags.executor())
		},
	}

	cmd.Flags().StringVarP(&acl, "acl", "a", "private", "canned ACL (accepted but not sent: the CreateBucket request carries no ACL)")
	return cmd
}
