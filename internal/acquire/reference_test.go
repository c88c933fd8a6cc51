package acquire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBLTHList(t *testing.T) {
	assert.Equal(t, []string{"202507", "202508"}, ParseBLTHList("202507, 202508"))
	assert.Equal(t, []string{"202507", "202508", "202509"}, ParseBLTHList("202507;202508 202509"))
	assert.Nil(t, ParseBLTHList("  "))
}

func TestParseReferenceCSV(t *testing.T) {
	in := strings.NewReader(
		"IDPEL,SAHLWBP,NAMA\n" +
			"521030123456,12100.0,BUDI\n" +
			" 521030999999 ,\"1,234\",SITI\n" +
			",777,EMPTY\n" +
			"521030555555,,ANDI\n")

	rows, err := ParseReferenceCSV(in)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, ReferenceRow{IDPEL: "521030123456", SAHLWBP: "12100"}, rows[0])
	assert.Equal(t, ReferenceRow{IDPEL: "521030999999", SAHLWBP: "1234"}, rows[1])
	assert.Equal(t, ReferenceRow{IDPEL: "521030555555", SAHLWBP: ""}, rows[2])
}

func TestParseReferenceCSVErrors(t *testing.T) {
	_, err := ParseReferenceCSV(strings.NewReader("NAMA,ALAMAT\nBUDI,JL X\n"))
	assert.Error(t, err)

	_, err = ParseReferenceCSV(strings.NewReader("IDPEL\n"))
	assert.Error(t, err)

	_, err = ParseReferenceCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestNormalizeSAHLWBP(t *testing.T) {
	assert.Equal(t, "12100", normalizeSAHLWBP("12100.0"))
	assert.Equal(t, "1234", normalizeSAHLWBP(" 1,234 "))
	assert.Equal(t, "", normalizeSAHLWBP(""))
	assert.Equal(t, "99", normalizeSAHLWBP("99.75"))
}

func TestLoadReferenceCSVMissingFile(t *testing.T) {
	_, err := LoadReferenceCSV("no-such-file.csv")
	assert.Error(t, err)
}
