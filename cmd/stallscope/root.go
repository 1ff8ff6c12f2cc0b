package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// envPrefix is prepended to flag names to find their environment variables,
// for example STALLSCOPE_MONITOR_PORT for --monitor-port.
const envPrefix = "STALLSCOPE_"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stallscope",
	Short: "stallscope finds slow synchronous blocks in an event loop.",
	Long: `stallscope runs workloads on an observed event loop. Every ` +
		`synchronous block that runs longer than the threshold is reported ` +
		`together with the chain of asynchronous operations that led to it. ` +
		`Flags can also be set through ` + envPrefix + `* environment ` +
		`variables or a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loadEnv()
		return applyEnv(cmd.Flags())
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadEnv reads a .env file in the working directory, if there is one.
// Variables already set in the environment win.
func loadEnv() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Cannot load .env: %v\n", err)
	}
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnv sets every flag that is not given on the command line from its
// environment variable.
func applyEnv(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		v, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		if setErr := flags.Set(f.Name, v); setErr != nil {
			err = fmt.Errorf("%s: %w", envName(f.Name), setErr)
		}
	})

	return err
}
