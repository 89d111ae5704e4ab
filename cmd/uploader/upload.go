package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Stratus/internal/config"
	"github.com/markdave123-py/Stratus/internal/upload"
)

func uploadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Validate and upload one or more files",
		Long: `Validate every FILE against the size limit and allowed extensions, then
upload the valid ones. Each file is an independent attempt: a failure never
stops the others. The command exits non-zero if any file failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig(v)
			if err != nil {
				return err
			}
			return runUpload(cmd.Context(), cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runUpload(ctx context.Context, cfg *config.ClientConfig, paths []string, stdout, stderr io.Writer) error {
	log := newCLILogger(cfg.LogLevel, stderr)
	out := newConsole(stdout)

	client, err := upload.NewHTTPClient(cfg.Server,
		upload.WithToken(cfg.Token),
		upload.WithPaths(cfg.TargetPath, cfg.RecordPath),
		upload.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return err
	}

	var failed atomic.Int32
	files := make([]upload.FileHandle, 0, len(paths))
	for _, p := range paths {
		f, err := upload.OpenFile(p)
		if err == nil {
			err = upload.Validate(f, cfg.MaxSizeBytes, cfg.Extensions)
		}
		if err != nil {
			out.printf("[%s] rejected: %v\n", p, err)
			failed.Add(1)
			continue
		}
		files = append(files, f)
	}

	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)

	for _, f := range files {
		g.Go(func() error {
			orch := upload.NewOrchestrator(client, client, client,
				upload.WithSourceTag(cfg.SourceTag),
				upload.WithStateHook(out.stateHook(f.Name)),
				upload.WithLogger(log),
			)

			attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			record, err := orch.StartUpload(attemptCtx, f, out.progress(f.Name))
			if err != nil {
				failed.Add(1)
				reportFailure(out, f.Name, err)
				return nil
			}
			out.printf("[%s] record: %s\n", f.Name, record)
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(paths))
	}
	return nil
}

func reportFailure(out *console, name string, err error) {
	out.printf("[%s] error: %v\n", name, err)

	var pe *upload.PhaseError
	if errors.As(err, &pe) && pe.Orphaned() {
		out.printf("[%s] object %s/%s was stored but not registered\n", name, pe.Bucket, pe.ObjectKey)
	}
}

func newCLILogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger().Level(lvl)
}
