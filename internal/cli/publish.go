package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redismux-io/redismux"
)

var publishCmd = &cobra.Command{
	Use:   "publish <channel> <payload>",
	Short: "Publish a message and print the number of receivers",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := dialURL()
		if err != nil {
			return err
		}
		client, err := redismux.NewFromURL(addr)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		receivers, err := client.Publish(ctx, args[0], args[1]).Result()
		if err != nil {
			return err
		}
		fmt.Println(receivers)
		return nil
	},
}
