package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no record exists for a (BLTH, IDPEL) pair.
var ErrNotFound = errors.New("record not found")

// MeterRepository handles database operations for meter reading records.
type MeterRepository struct {
	DB *gorm.DB
}

// NewMeterRepository creates a new instance of MeterRepository.
func NewMeterRepository(db *gorm.DB) *MeterRepository {
	return &MeterRepository{DB: db}
}

// AutomatedResult carries one cascade outcome into the store.
type AutomatedResult struct {
	BLTH    string
	IDPEL   string
	KET     string // status text
	SAI     string // automated reading
	Anotasi string // annotation link
	SAHLWBP string // prior reading from the reference sheet
}

// UpsertAutomated records an automated reading. A new record seeds
// STAND_VERIFIKASI from the reading and leaves VER unset; re-processing an
// existing record refreshes the automated columns but never touches VER or
// STAND_VERIFIKASI, so human review survives reruns. Returns true when the
// record was created.
func (r *MeterRepository) UpsertAutomated(res AutomatedResult) (bool, error) {
	blth := strings.TrimSpace(res.BLTH)
	idpel := strings.TrimSpace(res.IDPEL)
	if blth == "" || idpel == "" {
		return false, errors.New("BLTH and IDPEL are required")
	}
	sai := strings.TrimSpace(res.SAI)

	created := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("BLTH = ? AND IDPEL = ?", blth, idpel)
		if tx.Dialector.Name() == DriverMySQL {
			// SQLite serializes writers already; the row lock is MySQL-only.
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var existing MeterRecord
		err := q.First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			record := MeterRecord{
				BLTH:            blth,
				IDPEL:           idpel,
				KET:             strings.TrimSpace(res.KET),
				SAHLWBP:         strings.TrimSpace(res.SAHLWBP),
				SAI:             sai,
				StandVerifikasi: sai,
				Anotasi:         strings.TrimSpace(res.Anotasi),
				VER:             VerificationUnset,
			}
			return tx.Create(&record).Error
		case err != nil:
			return err
		}

		return tx.Model(&MeterRecord{}).
			Where("BLTH = ? AND IDPEL = ?", blth, idpel).
			Updates(map[string]interface{}{
				"KET":     strings.TrimSpace(res.KET),
				"SAI":     sai,
				"ANOTASI": strings.TrimSpace(res.Anotasi),
				"SAHLWBP": strings.TrimSpace(res.SAHLWBP),
			}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert record %s/%s: %w", blth, idpel, err)
	}

	slog.Debug("Recorded automated reading",
		"blth", blth, "idpel", idpel, "created", created, "reading", sai)
	return created, nil
}

// Get retrieves the record for a (BLTH, IDPEL) pair.
func (r *MeterRepository) Get(blth, idpel string) (*MeterRecord, error) {
	var record MeterRecord
	err := r.DB.Where("BLTH = ? AND IDPEL = ?", blth, idpel).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", blth, idpel, err)
	}
	return &record, nil
}

// VerifyRequest is one human review decision.
type VerifyRequest struct {
	BLTH            string       `json:"blth"`
	IDPEL           string       `json:"idpel"`
	VER             Verification `json:"ver"`
	KET             string       `json:"ket"`
	StandVerifikasi string       `json:"stand_verifikasi"`
}

// Verify applies a reviewer's decision: the verification verdict, the
// corrected status text, and the corrected reading.
func (r *MeterRepository) Verify(req VerifyRequest) error {
	if req.BLTH == "" || req.IDPEL == "" {
		return errors.New("BLTH and IDPEL are required")
	}
	if !req.VER.Valid() {
		return fmt.Errorf("invalid verification value: %q", req.VER)
	}

	res := r.DB.Model(&MeterRecord{}).
		Where("BLTH = ? AND IDPEL = ?", req.BLTH, req.IDPEL).
		Updates(map[string]interface{}{
			"VER":              req.VER,
			"KET":              req.KET,
			"STAND_VERIFIKASI": req.StandVerifikasi,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to verify record %s/%s: %w", req.BLTH, req.IDPEL, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(req.BLTH, req.IDPEL); err != nil {
			return err
		}
	}
	return nil
}

// VerdictUpdate sets just the verification verdict for one record.
type VerdictUpdate struct {
	BLTH  string       `json:"blth"`
	IDPEL string       `json:"idpel"`
	VER   Verification `json:"ver"`
}

// VerifyAll applies verdicts in bulk, each as its own atomic update, so one
// bad entry never blocks the rest. Incomplete or failing entries are skipped;
// the count of applied updates is returned.
func (r *MeterRepository) VerifyAll(updates []VerdictUpdate) (int, error) {
	applied := 0
	for _, u := range updates {
		if u.BLTH == "" || u.IDPEL == "" || u.VER == VerificationUnset || !u.VER.Valid() {
			slog.Warn("Skipping incomplete verdict", "blth", u.BLTH, "idpel", u.IDPEL)
			continue
		}
		res := r.DB.Model(&MeterRecord{}).
			Where("BLTH = ? AND IDPEL = ?", u.BLTH, u.IDPEL).
			Update("VER", u.VER)
		if res.Error != nil {
			slog.Warn("Failed to apply verdict",
				"blth", u.BLTH, "idpel", u.IDPEL, "error", res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			applied++
		}
	}
	return applied, nil
}

// ListFilter selects which records List returns.
type ListFilter string

const (
	FilterAll        ListFilter = "all"
	FilterUnverified ListFilter = "unverified"
	FilterSesuai     ListFilter = "sesuai"
	FilterTidak      ListFilter = "tidak"
)

// List retrieves records matching the filter, newest billing period first.
func (r *MeterRepository) List(filter ListFilter) ([]MeterRecord, error) {
	q := r.DB.Model(&MeterRecord{})
	switch filter {
	case FilterUnverified:
		q = q.Where("VER IS NULL OR VER = ''")
	case FilterSesuai:
		q = q.Where("VER = ?", VerificationSesuai)
	case FilterTidak:
		q = q.Where("VER = ?", VerificationTidak)
	case FilterAll, "":
		// no filter
	default:
		return nil, fmt.Errorf("unknown filter: %q", filter)
	}

	var records []MeterRecord
	if err := q.Order("BLTH DESC, IDPEL ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
