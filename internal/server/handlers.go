package server

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/bmp"

	"github.com/rzqiy/deteksi-kwh/internal/models"
	"github.com/rzqiy/deteksi-kwh/internal/version"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// modelsHandler returns information about the cascade models.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inventory := models.ListModels()
	modelList := make([]ModelInfo, len(inventory))
	for i, m := range inventory {
		modelList[i] = ModelInfo{
			Stage:       string(m.Stage),
			Path:        models.ModelPath(s.modelsDir, m.Stage),
			LabelsPath:  models.LabelsPath(s.modelsDir, m.Stage),
			Description: m.Description,
		}
	}

	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: modelList, Count: len(modelList)})
}

// UploadItemResult mirrors the per-file response of the upload endpoint.
type UploadItemResult struct {
	Filename   string `json:"filename"`
	StatusText string `json:"result_text"`
	ImageURL   string `json:"result_image_url"`
}

// processHandler runs the reading cascade on uploaded photos.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		s.writeErrorResponse(w, "No image files provided", http.StatusBadRequest)
		return
	}

	results := make([]UploadItemResult, 0, len(files))
	for _, header := range files {
		results = append(results, s.processUpload(header))
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) processUpload(header *multipart.FileHeader) UploadItemResult {
	item := UploadItemResult{Filename: header.Filename}

	file, err := header.Open()
	if err != nil {
		item.StatusText = "Gagal membaca file gambar."
		return item
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		item.StatusText = "Gagal membaca file gambar."
		return item
	}

	// Interactive uploads are transient: annotations land next to the
	// uploaded originals, not in the durable results area.
	start := time.Now()
	result, err := s.processor.Process(img, s.workDir)
	if err != nil {
		cascadeRequestsTotal.WithLabelValues("upload", "error").Inc()
		item.StatusText = fmt.Sprintf("Gagal memproses gambar: %v", err)
		return item
	}
	cascadeRequestsTotal.WithLabelValues("upload", "ok").Inc()
	cascadeDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	meterStateTotal.WithLabelValues(result.MeterState).Inc()

	item.StatusText = result.StatusText
	item.ImageURL = result.AnnotationLink
	return item
}

// cleanupUploadsHandler empties the transient uploads area. Only plain
// files are removed; subdirectories stay.
func (s *Server) cleanupUploadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Gagal membersihkan folder: %v", err), http.StatusInternalServerError)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.workDir, entry.Name())); err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Gagal membersihkan folder: %v", err), http.StatusInternalServerError)
			return
		}
	}

	slog.Info("Cleaned uploads directory", "dir", s.workDir)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
