package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rzqiy/deteksi-kwh/internal/pipeline"
	"github.com/rzqiy/deteksi-kwh/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Read kWh meters from local photo files",
	Long: `Run the detection cascade on one or more local meter photos.

Each photo is classified, the readout panel is located, the digits are
extracted, and an annotated copy is written to the artifact directory.

Supported formats: JPEG, PNG, BMP

Examples:
  deteksi-kwh image foto_kwh.jpg
  deteksi-kwh image *.jpg --format json
  deteksi-kwh image foto.jpg --artifact-dir hasil/`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format, _ := cmd.Flags().GetString("format")
		if format != outputFormatText && format != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s (must be one of: %s)",
				format, strings.Join([]string{outputFormatText, outputFormatJSON}, ", "))
		}
		if cfg.Pipeline.ConfThreshold < 0 || cfg.Pipeline.ConfThreshold > 1 {
			return fmt.Errorf("invalid confidence threshold: %.2f (must be between 0.0 and 1.0)", cfg.Pipeline.ConfThreshold)
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

		for _, pth := range args {
			if !utils.IsSupportedImage(pth) {
				return fmt.Errorf("unsupported image format: %s", pth)
			}
			res, err := pl.ProcessFile(pth)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", pth, err)
			}
			switch format {
			case outputFormatJSON:
				obj := struct {
					File   string               `json:"file"`
					Result pipeline.MeterResult `json:"result"`
				}{File: pth, Result: res}
				bts, err := json.MarshalIndent(obj, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(bts)); err != nil {
					return err
				}
			default:
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", pth, res.StatusText); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  annotated: %s\n", res.ArtifactPath); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func addImageFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	cmd.Flags().String("artifact-dir", "", "directory for annotated result images")
	cmd.Flags().Float64("confidence", 0, "minimum detection confidence threshold (0..1)")
	cmd.Flags().Float64("iou", 0, "IoU threshold for overlap suppression (0..1)")
	cmd.Flags().Int("max-digits", 0, "maximum digits assembled into a reading")
	cmd.Flags().Bool("gpu", false, "enable GPU acceleration using CUDA")
	cmd.Flags().Int("gpu-device", 0, "CUDA device ID to use (default: 0)")
}

// bindImageFlags binds the cascade flags to viper configuration keys.
func bindImageFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"pipeline.artifact_dir", "artifact-dir"},
		{"pipeline.conf_threshold", "confidence"},
		{"pipeline.iou_threshold", "iou"},
		{"pipeline.max_digits", "max-digits"},
		{"gpu.enabled", "gpu"},
		{"gpu.device_id", "gpu-device"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addImageFlags(imageCmd)
	bindImageFlags(imageCmd)
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
