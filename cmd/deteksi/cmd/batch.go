package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rzqiy/deteksi-kwh/internal/acquire"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Download and read meter photos for whole billing periods",
	Long: `Download meter photos from the ACMT billing portal for every account in a
reference sheet, run the reading cascade on each, and persist the results.

The reference sheet is a CSV export with IDPEL and SAHLWBP columns. Portal
access requires the JSESSIONID and Pool_ACMTJava cookies of a logged-in
session.

Examples:
  deteksi-kwh batch --blth 202508 --reference pelanggan.csv \
    --jsessionid ABC123 --poolacmt XYZ789
  deteksi-kwh batch --blth "202507 202508" --reference pelanggan.csv \
    --jsessionid ABC123 --poolacmt XYZ789 --progress`,
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	jsessionID, _ := cmd.Flags().GetString("jsessionid")
	poolACMT, _ := cmd.Flags().GetString("poolacmt")
	blthRaw, _ := cmd.Flags().GetString("blth")
	referencePath, _ := cmd.Flags().GetString("reference")
	showProgress, _ := cmd.Flags().GetBool("progress")

	if jsessionID == "" || poolACMT == "" {
		return errors.New("both --jsessionid and --poolacmt are required")
	}
	if referencePath == "" {
		return errors.New("--reference CSV file is required")
	}

	blths := acquire.ParseBLTHList(blthRaw)
	if len(blths) == 0 {
		return errors.New("--blth must name at least one billing period")
	}

	rows, err := acquire.LoadReferenceCSV(referencePath)
	if err != nil {
		return fmt.Errorf("failed to load reference sheet: %w", err)
	}

	clientCfg := acquire.DefaultClientConfig()
	if cfg.Portal.BaseURL != "" {
		clientCfg.BaseURL = cfg.Portal.BaseURL
	}
	if cmd.Flags().Changed("portal-url") {
		clientCfg.BaseURL, _ = cmd.Flags().GetString("portal-url")
	}
	clientCfg.JSessionID = jsessionID
	clientCfg.PoolACMT = poolACMT
	client, err := acquire.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("failed to create portal client: %w", err)
	}

	pl, err := buildPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to build detection cascade: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing cascade: %v\n", err)
		}
	}()

	repo, err := openRepository(cfg)
	if err != nil {
		return err
	}

	workDir := cfg.Server.WorkDir
	if cmd.Flags().Changed("work-dir") {
		workDir, _ = cmd.Flags().GetString("work-dir")
	}

	runner := &acquire.Runner{
		Fetcher:   client,
		Processor: pl,
		Recorder:  repo,
		WorkDir:   workDir,
	}
	if showProgress {
		runner.Progress = func(done, total int, item acquire.ItemResult) {
			fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s: %s\n", done, total, item.Filename, item.StatusText)
		}
	}

	results, err := runner.Run(cmd.Context(), blths, rows)
	if err != nil {
		for _, res := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Filename, res.StatusText)
		}
		if errors.Is(err, acquire.ErrAuthExpired) {
			return errors.New("portal session (JSESSIONID) is invalid or expired")
		}
		return fmt.Errorf("batch run failed: %w", err)
	}

	failed := 0
	for _, res := range results {
		if res.IsError {
			failed++
		}
		if !showProgress {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Filename, res.StatusText)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d item(s), %d failed\n", len(results), failed)
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("jsessionid", "", "JSESSIONID cookie of a logged-in portal session")
	batchCmd.Flags().String("poolacmt", "", "Pool_ACMTJava cookie of a logged-in portal session")
	batchCmd.Flags().String("blth", "", "billing period(s) to process, e.g. 202508 or \"202507,202508\"")
	batchCmd.Flags().StringP("reference", "r", "", "reference CSV with IDPEL and SAHLWBP columns")
	batchCmd.Flags().Bool("progress", false, "print per-item progress as the batch runs")
	batchCmd.Flags().String("work-dir", "uploads", "scratch directory for downloaded photos")
	batchCmd.Flags().String("portal-url", "", "override billing portal photo URL")
}
