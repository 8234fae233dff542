package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/redismux-io/redismux"
	"github.com/redismux-io/redismux/pubsub"
)

var (
	listenBinary      bool
	listenMetricsAddr string
	listenWorkers     int
)

var listenCmd = &cobra.Command{
	Use:   "listen <channel> [channel...]",
	Short: "Subscribe to channels and print messages until interrupted",
	Long: `Subscribe to one or more channels and print every message as
"<channel> <payload>" lines on stdout. The subscription survives connection
loss. Stop with Ctrl-C.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

func init() {
	listenCmd.Flags().BoolVar(&listenBinary, "binary", false,
		"treat channels and payloads as raw bytes, print payloads as hex")
	listenCmd.Flags().StringVar(&listenMetricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address (e.g. :9090)")
	listenCmd.Flags().IntVar(&listenWorkers, "workers", 0,
		"dispatch messages on this many goroutines instead of inline")
}

func runListen(cmd *cobra.Command, args []string) error {
	opts := []redismux.Option{
		redismux.WithLogger(&log.Logger),
	}
	if listenMetricsAddr != "" {
		opts = append(opts, redismux.WithMetrics(pubsub.NewMetrics(nil)))
	}
	if listenWorkers > 0 {
		exec := pubsub.NewPoolExecutor(listenWorkers, 0)
		defer exec.Close()
		opts = append(opts, redismux.WithExecutor(exec))
	}

	addr, err := dialURL()
	if err != nil {
		return err
	}
	client, err := redismux.NewFromURL(addr, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	if listenMetricsAddr != "" {
		go serveMetrics(listenMetricsAddr)
	}

	if listenBinary {
		err = subscribeBinary(client, args)
	} else {
		err = subscribeText(client, args)
	}
	if err != nil {
		return err
	}
	log.Info().Strs("channels", args).Msg("Listening")

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	resubscribes := client.PubSub().ResubscribeCount()
	if listenBinary {
		resubscribes = client.BinaryPubSub().ResubscribeCount()
	}
	log.Info().Int("resubscribes", resubscribes).Msg("Shutting down")
	return nil
}

func subscribeText(client *redismux.Client, channels []string) error {
	l := redismux.ListenerFunc(func(channel, payload string) error {
		fmt.Printf("%s %s\n", channel, payload)
		return nil
	})
	for _, ch := range channels {
		if _, err := client.Subscribe(l, ch); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}
	return nil
}

func subscribeBinary(client *redismux.Client, channels []string) error {
	l := redismux.BinaryListenerFunc(func(channel, payload []byte) error {
		fmt.Printf("%s %x\n", channel, payload)
		return nil
	})
	for _, ch := range channels {
		if _, err := client.SubscribeBinary(l, []byte(ch)); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("address", addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
