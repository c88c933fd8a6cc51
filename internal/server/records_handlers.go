package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rzqiy/deteksi-kwh/internal/store"
)

// recordsHandler lists stored readings, optionally filtered by review state.
func (s *Server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := store.ListFilter(r.URL.Query().Get("filter"))
	records, err := s.repo.List(filter)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// verifyHandler applies one reviewer decision.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req store.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.BLTH == "" || req.IDPEL == "" {
		s.writeErrorResponse(w, "Data tidak lengkap", http.StatusBadRequest)
		return
	}

	if err := s.repo.Verify(req); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeErrorResponse(w, err.Error(), http.StatusNotFound)
			return
		}
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, VerifyResponse{Success: true})
}

// verifyAllHandler applies reviewer verdicts in bulk.
func (s *Server) verifyAllHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var updates []store.VerdictUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.writeErrorResponse(w, "Data tidak valid, harus berupa daftar", http.StatusBadRequest)
		return
	}

	applied, err := s.repo.VerifyAll(updates)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, VerifyResponse{
		Success: true,
		Applied: applied,
		Message: "Semua perubahan VER tersimpan",
	})
}
