package cli

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/redismux-io/redismux"
	"github.com/redismux-io/redismux/internal/cli/output"
)

var (
	channelsOutput    string
	channelsNoHeaders bool
)

var channelsCmd = &cobra.Command{
	Use:   "channels [pattern]",
	Short: "List active channels on the server with subscriber counts",
	Long: `List the channels that currently have at least one subscriber, optionally
filtered by a glob-style pattern (default "*"). Channels and counts come from
the server (PUBSUB CHANNELS and PUBSUB NUMSUB), so subscriptions held by
other clients are included.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChannels,
}

func init() {
	channelsCmd.Flags().StringVarP(&channelsOutput, "output", "o", "table",
		"output format: table, json, yaml")
	channelsCmd.Flags().BoolVar(&channelsNoHeaders, "no-headers", false,
		"hide table headers")
}

func runChannels(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(channelsOutput)
	if err != nil {
		return err
	}
	formatter := output.NewFormatter(format, channelsNoHeaders)

	pattern := "*"
	if len(args) == 1 {
		pattern = args[0]
	}

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

	channels, err := client.PubSubChannels(ctx, pattern).Result()
	if err != nil {
		return err
	}
	counts := make(map[string]int64)
	if len(channels) > 0 {
		counts, err = client.PubSubNumSub(ctx, channels...).Result()
		if err != nil {
			return err
		}
	}
	sort.Strings(channels)

	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, []string{ch, strconv.FormatInt(counts[ch], 10)})
	}
	formatter.PrintTable(output.TableData{
		Headers: []string{"CHANNEL", "SUBSCRIBERS"},
		Rows:    rows,
	})
	return nil
}
