package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mediabot/backend"
)

func newFetchCmd(configPath *string) *cobra.Command {
	var audio bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Run one acquisition locally, without Telegram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := backend.MediaVideo
			if audio {
				kind = backend.MediaAudio
			}
			return runFetch(cmd.Context(), *configPath, args[0], kind, outDir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&audio, "audio", false, "extract audio as MP3")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for the result")
	return cmd
}

func runFetch(ctx context.Context, configPath, rawURL string, kind backend.MediaKind, outDir string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := backend.ValidateMediaURL(rawURL); err != nil {
		return err
	}
	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}

	media, err := backend.NewMediaService(cfg, backend.Logger)
	if err != nil {
		return err
	}
	defer media.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Fetch.JobTimeout.Duration)
	defer cancel()

	arena, err := media.Temp.NewArena(0)
	if err != nil {
		return err
	}
	defer arena.Cleanup()

	artifact, job, err := media.Acquire(ctx, 0, rawURL, kind, arena)
	for _, a := range job.Attempts {
		fmt.Fprintf(stdout, "%-22s %s\n", a.Strategy, a.Outcome)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	dest := filepath.Join(outDir, filepath.Base(artifact.Path))
	if err := copyFile(artifact.Path, dest); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved %s (%s)\n", dest, backend.FormatFileSize(artifact.Size))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
