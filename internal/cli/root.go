// Package cli provides the Cobra commands for the redismux CLI.
package cli

import (
	"fmt"
	"net/url"
	"os"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	redisURL string
	askPass  bool
	debug    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "redismux",
	Short: "Resilient Redis pub/sub from the command line",
	Long: `redismux subscribes to Redis pub/sub channels through a connection-loss
tolerant subscription manager: if the server connection drops, the
subscription is re-established transparently and listening continues.

Get started:
  redismux listen orders payments    Print messages on two channels
  redismux publish orders '{"id":1}' Publish a message

The server URL is taken from --url or REDISMUX_URL.`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Assigned here rather than in the composite literal above because the
	// closure mentions rootCmd, which the compiler rejects as an
	// initialization cycle.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		envFile := loadDotEnv()

		if !rootCmd.PersistentFlags().Changed("debug") && viper.IsSet("debug") {
			debug = viper.GetBool("debug")
		}

		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}

		if envFile != "" {
			log.Debug().Str("file", envFile).Msg(".env file loaded")
		}
	}

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&redisURL, "url", "redis://localhost:6379",
		"redis server URL")
	rootCmd.PersistentFlags().BoolVar(&askPass, "askpass", false,
		"prompt for the redis password instead of embedding it in the URL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	// Bind environment variables
	viper.SetEnvPrefix("REDISMUX")
	_ = viper.BindEnv("url")   // REDISMUX_URL
	_ = viper.BindEnv("debug") // REDISMUX_DEBUG
	viper.AutomaticEnv()

	// Add subcommands
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(versionCmd)
}

// serverURL resolves the redis URL: an explicit --url wins, then
// REDISMUX_URL, then the flag default.
func serverURL() string {
	if !rootCmd.PersistentFlags().Changed("url") && viper.IsSet("url") {
		return viper.GetString("url")
	}
	return redisURL
}

// dialURL resolves the redis URL and, with --askpass, injects a password
// read from the terminal so it never lands in shell history.
func dialURL() (string, error) {
	raw := serverURL()
	if !askPass {
		return raw, nil
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return injectPassword(raw, password)
}

// injectPassword sets the password component of a redis URL, keeping any
// username already present.
func injectPassword(raw, password string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse redis url: %w", err)
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

// readPassword reads a password from stdin without echoing
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Print newline after password input
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// loadDotEnv loads environment variables from a .env file in the working
// directory so REDISMUX_* settings travel with a project. Missing files are
// fine; the first file found wins. Returns the loaded file name.
func loadDotEnv() string {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err != nil {
			continue
		}
		if err := godotenv.Load(location); err != nil {
			continue
		}
		return location
	}
	return ""
}
