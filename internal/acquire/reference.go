package acquire

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ReferenceRow is one account from the operator's reference sheet: the
// account number plus the prior reading carried into new records.
type ReferenceRow struct {
	IDPEL   string
	SAHLWBP string
}

var blthSeparators = regexp.MustCompile(`[\s,;]+`)

// ParseBLTHList splits an operator-entered billing period string on
// whitespace, commas and semicolons.
func ParseBLTHList(s string) []string {
	var out []string
	for _, item := range blthSeparators.Split(s, -1) {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normalizeSAHLWBP cleans spreadsheet-exported readings: decimal tails,
// thousands separators and stray spaces are dropped.
func normalizeSAHLWBP(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

// ParseReferenceCSV reads account rows from a CSV export of the reference
// sheet. A header row is required; the IDPEL column must be present, the
// SAHLWBP column is optional.
func ParseReferenceCSV(r io.Reader) ([]ReferenceRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read reference header: %w", err)
	}
	idpelCol, sahlwbpCol := -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "IDPEL":
			idpelCol = i
		case "SAHLWBP":
			sahlwbpCol = i
		}
	}
	if idpelCol < 0 {
		return nil, errors.New("reference sheet has no IDPEL column")
	}

	var rows []ReferenceRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference row: %w", err)
		}
		if idpelCol >= len(rec) {
			continue
		}
		idpel := strings.TrimSpace(rec[idpelCol])
		if idpel == "" {
			continue
		}
		row := ReferenceRow{IDPEL: idpel}
		if sahlwbpCol >= 0 && sahlwbpCol < len(rec) {
			row.SAHLWBP = normalizeSAHLWBP(rec[sahlwbpCol])
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("reference sheet contains no accounts")
	}
	return rows, nil
}

// LoadReferenceCSV reads a reference sheet from a file path.
func LoadReferenceCSV(path string) ([]ReferenceRow, error) {
	f, err := os.Open(path) //nolint:gosec // G304: sheet path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open reference sheet: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseReferenceCSV(f)
}
