package server

import (
	"errors"
	"net/http"

	"github.com/rzqiy/deteksi-kwh/internal/acquire"
)

const authExpiredMessage = "Gagal: Sesi login (JSESSIONID) salah atau kedaluwarsa. Proses dihentikan."

// batchRequestFromForm validates the batch form fields and builds the runner
// inputs: portal fetcher, billing periods and reference rows.
func (s *Server) batchRequestFromForm(r *http.Request) (acquire.Fetcher, []string, []acquire.ReferenceRow, error) {
	jsessionID := r.FormValue("jsessionid")
	poolACMT := r.FormValue("poolacmt")
	blthString := r.FormValue("blth")
	if jsessionID == "" || poolACMT == "" || blthString == "" {
		return nil, nil, nil, errors.New("semua field harus diisi lengkap")
	}

	blths := acquire.ParseBLTHList(blthString)
	if len(blths) == 0 {
		return nil, nil, nil, errors.New("daftar BLTH kosong")
	}

	file, _, err := r.FormFile("reference")
	if err != nil {
		return nil, nil, nil, errors.New("file referensi (CSV) tidak ditemukan")
	}
	defer func() { _ = file.Close() }()

	rows, err := acquire.ParseReferenceCSV(file)
	if err != nil {
		return nil, nil, nil, err
	}

	fetcher, err := s.newFetcher(jsessionID, poolACMT)
	if err != nil {
		return nil, nil, nil, err
	}
	return fetcher, blths, rows, nil
}

// batchHandler downloads photos from the portal for every account and billing
// period in the reference sheet, runs the cascade and persists the readings.
func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	fetcher, blths, rows, err := s.batchRequestFromForm(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	runner := &acquire.Runner{
		Fetcher:   fetcher,
		Processor: s.processor,
		Recorder:  s.repo,
		WorkDir:   s.workDir,
		Progress: func(_, _ int, item acquire.ItemResult) {
			status := "ok"
			if item.IsError {
				status = "error"
			}
			batchItemsTotal.WithLabelValues(status).Inc()
		},
	}

	results, err := runner.Run(r.Context(), blths, rows)
	if errors.Is(err, acquire.ErrAuthExpired) {
		s.writeErrorResponse(w, authExpiredMessage, http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}
