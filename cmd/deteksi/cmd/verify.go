package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rzqiy/deteksi-kwh/internal/store"
	"github.com/spf13/cobra"
)

// verifyCmd groups the human verification subcommands.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "List and verify stored meter readings",
	Long: `Review automated readings and record human verdicts.

A verdict is either "sesuai" (the automated reading matches the photo) or
"tidak" (it does not). Verdicts and corrected readings are never overwritten
by later automated runs.`,
}

// verifyListCmd represents the verify list subcommand.
var verifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored readings",
	Long: `List stored readings, newest billing period first.

Examples:
  deteksi-kwh verify list
  deteksi-kwh verify list --filter unverified
  deteksi-kwh verify list --filter tidak --format json`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		filter, _ := cmd.Flags().GetString("filter")
		format, _ := cmd.Flags().GetString("format")

		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}

		records, err := repo.List(store.ListFilter(filter))
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}

		if format == outputFormatJSON {
			bts, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bts))
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BLTH\tIDPEL\tSAI\tSTAND_VERIFIKASI\tVER\tKET")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.BLTH, rec.IDPEL, rec.SAI, rec.StandVerifikasi, rec.VER, rec.KET)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d record(s)\n", len(records))
		return err
	},
}

// verifySetCmd represents the verify set subcommand.
var verifySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Record a human verdict for one reading",
	Long: `Record a reviewer's verdict for a single reading, optionally correcting the
status text and the reading itself.

Examples:
  deteksi-kwh verify set --blth 202508 --idpel 111 --ver sesuai
  deteksi-kwh verify set --blth 202508 --idpel 111 --ver tidak \
    --stand 01234 --ket "Angka koreksi manual"`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		blth, _ := cmd.Flags().GetString("blth")
		idpel, _ := cmd.Flags().GetString("idpel")
		ver, _ := cmd.Flags().GetString("ver")
		ket, _ := cmd.Flags().GetString("ket")
		stand, _ := cmd.Flags().GetString("stand")

		repo, err := openRepository(cfg)
		if err != nil {
			return err
		}

		req := store.VerifyRequest{
			BLTH:            blth,
			IDPEL:           idpel,
			VER:             store.Verification(ver),
			KET:             ket,
			StandVerifikasi: stand,
		}
		if !cmd.Flags().Changed("ket") || !cmd.Flags().Changed("stand") {
			existing, err := repo.Get(blth, idpel)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ket") {
				req.KET = existing.KET
			}
			if !cmd.Flags().Changed("stand") {
				req.StandVerifikasi = existing.StandVerifikasi
			}
		}

		if err := repo.Verify(req); err != nil {
			return fmt.Errorf("failed to record verdict: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Verdict %q recorded for %s/%s\n", ver, blth, idpel)
		return err
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.AddCommand(verifyListCmd)
	verifyCmd.AddCommand(verifySetCmd)

	verifyListCmd.Flags().String("filter", "all", "filter records (all, unverified, sesuai, tidak)")
	verifyListCmd.Flags().StringP("format", "f", "text", "output format (text, json)")

	verifySetCmd.Flags().String("blth", "", "billing period of the record")
	verifySetCmd.Flags().String("idpel", "", "customer account of the record")
	verifySetCmd.Flags().String("ver", "", "verdict (sesuai, tidak)")
	verifySetCmd.Flags().String("ket", "", "corrected status text")
	verifySetCmd.Flags().String("stand", "", "corrected meter reading")
	_ = verifySetCmd.MarkFlagRequired("blth")
	_ = verifySetCmd.MarkFlagRequired("idpel")
	_ = verifySetCmd.MarkFlagRequired("ver")
}
