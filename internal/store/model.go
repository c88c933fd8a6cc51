package store

// Verification is the human review outcome of an automated reading.
type Verification string

const (
	VerificationUnset  Verification = ""       // not yet reviewed
	VerificationSesuai Verification = "sesuai" // reading confirmed correct
	VerificationTidak  Verification = "tidak"  // reading rejected
)

// Valid reports whether v is one of the known verification states.
func (v Verification) Valid() bool {
	switch v {
	case VerificationUnset, VerificationSesuai, VerificationTidak:
		return true
	}
	return false
}

// MeterRecord is one detection result for an account in a billing period.
// The pair (BLTH, IDPEL) identifies a record: BLTH is the billing period
// (YYYYMM) and IDPEL the customer account number.
type MeterRecord struct {
	BLTH             string       `gorm:"column:BLTH;primaryKey;size:6" json:"BLTH"`
	IDPEL            string       `gorm:"column:IDPEL;primaryKey;size:20" json:"IDPEL"`
	KET              string       `gorm:"column:KET;size:50" json:"KET"`                            // cascade status text
	SAHLWBP          string       `gorm:"column:SAHLWBP;size:20" json:"SAHLWBP"`                    // prior reading from the reference sheet
	SAI              string       `gorm:"column:SAI;size:20" json:"SAI"`                            // automated reading
	StandVerifikasi  string       `gorm:"column:STAND_VERIFIKASI;size:20" json:"STAND_VERIFIKASI"` // human-correctable reading
	Anotasi          string       `gorm:"column:ANOTASI;size:255" json:"ANOTASI"`                   // annotated image link
	VER              Verification `gorm:"column:VER;size:10" json:"VER"`
}

// TableName keeps the legacy table name the verification UI reads.
func (MeterRecord) TableName() string { return "kwh_detection" }
