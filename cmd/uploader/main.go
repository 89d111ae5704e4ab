package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/markdave123-py/Stratus/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "uploader",
		Short: "Upload files straight into the Stratus bucket",
		Long: `uploader validates local files, asks the Stratus backend for a signed
upload URL, PUTs the bytes directly into object storage and registers
the stored object with the backend.

Every flag can also be set through an UPLOADER_* environment variable,
e.g. UPLOADER_SERVER or UPLOADER_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := config.BindClientFlags(v, rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		uploadCmd(v),
		loginCmd(v),
		versionCmd(),
	)
	return rootCmd
}
