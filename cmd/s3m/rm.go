package main

import (
	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/action"
	"github.com/s3m-go/s3m/internal/location"
)

func newRmCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm HOST/BUCKET/KEY",
		Short: "delete an object",
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
			return (action.DeleteObject{Key: loc.Key}).Do(cmd.Context(), target, flags.executor())
		},
	}
	return cmd
}
