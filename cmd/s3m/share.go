package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s3m-go/s3m/internal/location"
)

func newShareCmd(flags *globalFlags) *cobra.Command {
	var expireSeconds int

	cmd := &cobra.Command{
		Use:   "share HOST/BUCKET/KEY",
		Short: "print a presigned GET URL for an object",
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
			url, err := target.Key.Presign("/"+target.Bucket+"/"+loc.Key, time.Duration(expireSeconds)*time.Second)
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		},
	}

	cmd.Flags().IntVarP(&expireSeconds, "expire", "e", 43200, "time period in seconds the URL stays valid, max 604800 (seven days)")
	return cmd
}
