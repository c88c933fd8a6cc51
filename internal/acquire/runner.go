package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rzqiy/deteksi-kwh/internal/pipeline"
	"github.com/rzqiy/deteksi-kwh/internal/store"
)

// Fetcher downloads one meter photo to disk. *Client satisfies it.
type Fetcher interface {
	DownloadPhoto(ctx context.Context, idpel, blth, dir string) (string, error)
}

// Processor runs the reading cascade on one photo file.
type Processor interface {
	ProcessFile(path string) (pipeline.MeterResult, error)
}

// Recorder persists one automated reading.
type Recorder interface {
	UpsertAutomated(res store.AutomatedResult) (bool, error)
}

// ItemResult is the outcome for one account/period pair of a batch run.
type ItemResult struct {
	Filename   string `json:"filename"`
	StatusText string `json:"result_text"`
	ImageURL   string `json:"result_image_url"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ProgressFunc receives each finished item as the batch advances.
type ProgressFunc func(done, total int, item ItemResult)

// Runner walks a reference sheet across billing periods: download, run the
// cascade, persist. Items run sequentially; the portal rate-limits and the
// models are the bottleneck anyway.
type Runner struct {
	Fetcher   Fetcher
	Processor Processor
	Recorder  Recorder
	WorkDir   string // parent dir for per-run download scratch space
	Progress  ProgressFunc
}

// Run processes every (period, account) pair. Per-item failures are recorded
// and the run continues; an expired portal session aborts the whole run with
// ErrAuthExpired since every remaining download would fail the same way.
func (r *Runner) Run(ctx context.Context, blths []string, rows []ReferenceRow) ([]ItemResult, error) {
	if len(blths) == 0 {
		return nil, errors.New("no billing periods given")
	}
	if len(rows) == 0 {
		return nil, errors.New("no accounts given")
	}

	workDir := r.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	downloadDir := filepath.Join(workDir, uuid.New().String())
	if err := os.MkdirAll(downloadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(downloadDir); err != nil {
			slog.Warn("Failed to clean scratch dir", "dir", downloadDir, "error", err)
		}
	}()

	total := len(blths) * len(rows)
	results := make([]ItemResult, 0, total)
	done := 0

	emit := func(item ItemResult) {
		results = append(results, item)
		done++
		if r.Progress != nil {
			r.Progress(done, total, item)
		}
	}

	for _, blth := range blths {
		slog.Info("Processing billing period", "blth", blth, "accounts", len(rows))
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			filename := fmt.Sprintf("%s_%s.jpg", row.IDPEL, blth)

			path, err := r.Fetcher.DownloadPhoto(ctx, row.IDPEL, blth, downloadDir)
			if errors.Is(err, ErrAuthExpired) {
				slog.Error("Portal session expired, aborting batch", "blth", blth, "idpel", row.IDPEL)
				return results, err
			}
			if err != nil {
				emit(ItemResult{
					Filename:   filename,
					StatusText: downloadErrorText(err),
					IsError:    true,
				})
				continue
			}

			meterResult, err := r.Processor.ProcessFile(path)
			if err != nil {
				slog.Warn("Cascade failed", "idpel", row.IDPEL, "blth", blth, "error", err)
				emit(ItemResult{
					Filename:   filename,
					StatusText: fmt.Sprintf("Gagal memproses gambar: %v", err),
					IsError:    true,
				})
				continue
			}

			item := ItemResult{
				Filename:   filename,
				StatusText: meterResult.StatusText,
				ImageURL:   meterResult.AnnotationLink,
			}
			// KET holds the meter-state class; the status text is for the
			// report only and does not fit the column.
			if _, err := r.Recorder.UpsertAutomated(store.AutomatedResult{
				BLTH:    blth,
				IDPEL:   row.IDPEL,
				KET:     meterResult.MeterState,
				SAI:     meterResult.Reading,
				Anotasi: meterResult.AnnotationLink,
				SAHLWBP: row.SAHLWBP,
			}); err != nil {
				slog.Warn("Failed to persist reading", "idpel", row.IDPEL, "blth", blth, "error", err)
				item.StatusText += " -> Gagal menyimpan ke database."
				item.IsError = true
			}
			emit(item)
		}
	}
	return results, nil
}

func downloadErrorText(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "Gagal: Gambar untuk IDPEL atau BLTH ini tidak ditemukan di server."
	}
	return fmt.Sprintf("Gagal download: %v", err)
}
