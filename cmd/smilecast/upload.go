package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/smilecast/internal/capture"
	"github.com/ayusman/smilecast/internal/drive"
	"github.com/ayusman/smilecast/internal/store"
	"github.com/ayusman/smilecast/internal/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload captures left in the output directory",
	Long: `Upload numbered captures still in the output directory, for example after
a run whose uploads failed. Files are sent in batches and removed once their
batch has uploaded.

Examples:
  # Upload everything with the configured folder and credentials
  smilecast upload

  # Preview what would be uploaded
  smilecast upload --dry-run

  # Keep local files after uploading
  smilecast upload --keep`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().Bool("dry-run", false, "list files without uploading")
	uploadCmd.Flags().Bool("keep", false, "keep local files after upload")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	dryRun := mustGetBool(cmd, "dry-run")
	keep := mustGetBool(cmd, "keep")

	artifacts, err := capture.NewArtifacts(cfg.Output.Dir)
	if err != nil {
		return err
	}
	files, err := artifacts.Numbered()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No captures found in %s\n", artifacts.Dir())
		return nil
	}

	batcher := upload.NewBatcher(cfg.Upload.BatchSize)
	var batches [][]string
	for _, f := range files {
		batcher.Append(f)
		if batcher.ShouldFlush() {
			batches = append(batches, batcher.Flush())
		}
	}
	if rest := batcher.Flush(); rest != nil {
		batches = append(batches, rest)
	}

	if dryRun {
		fmt.Printf("Would upload %d files in %d batches to folder %q:\n", len(files), len(batches), cfg.Upload.FolderID)
		for i, b := range batches {
			for _, f := range b {
				fmt.Printf("  [%d] %s\n", i+1, f)
			}
		}
		return nil
	}

	var opts []upload.Option
	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		opts = append(opts, upload.WithLedger(st.Uploads()))
	}

	worker := upload.NewWorker(upload.WorkerConfig{
		FileTimeout: cfg.Upload.Timeout,
		StopTimeout: cfg.Upload.StopTimeout,
	}, drive.New(cfg.Upload.CredentialsPath), log.Logger, opts...)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var uploaded, failed int
	var failures []error
	for _, b := range batches {
		n := len(b)
		worker.Submit(upload.Task{
			FilePaths: b,
			FolderID:  cfg.Upload.FolderID,
			Callback: func(results []upload.Result, err error) {
				_ = bar.Add(n)
				if err != nil {
					failed += n
					failures = append(failures, err)
					return
				}
				uploaded += len(results)
				if keep {
					return
				}
				for _, r := range results {
					if err := os.Remove(r.FilePath); err != nil && !os.IsNotExist(err) {
						log.Warn().Err(err).Str("file", r.FilePath).Msg("removing uploaded file")
					}
				}
			},
		})
	}

	if err := worker.Start(); err != nil {
		return err
	}
	waitErr := worker.WaitForCompletion(cmd.Context())
	if err := worker.Stop(); err != nil {
		log.Warn().Err(err).Msg("stopping upload worker")
	}
	_ = bar.Finish()
	fmt.Println()

	if waitErr != nil {
		return fmt.Errorf("upload interrupted: %w", waitErr)
	}

	fmt.Printf("Uploaded: %d, Failed: %d\n", uploaded, failed)
	for _, err := range failures {
		fmt.Printf("  - %v\n", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d files failed to upload", failed)
	}
	return nil
}
