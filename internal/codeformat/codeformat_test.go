package codeformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

func TestBuildClinicCode(t *testing.T) {
	assert.Equal(t, "OB-SEOUL-CLINIC-001", BuildClinicCode(domain.RegionSeoul, domain.ClinicTypeClinic, 1))
	assert.Equal(t, "OB-BUSAN-HOSPITAL-042", BuildClinicCode(domain.RegionBusan, domain.ClinicTypeHospital, 42))
	assert.Equal(t, "OB-JEJU-ORIENTAL-999", BuildClinicCode(domain.RegionJeju, domain.ClinicTypeTraditional, 999))
}

func TestParseClinicCode_RoundTrip(t *testing.T) {
	for _, region := range domain.Regions() {
		code := BuildClinicCode(region, domain.ClinicTypeClinic, 7)
		parts, err := ParseClinicCode(code)
		require.NoError(t, err, code)
		assert.Equal(t, region, parts.Region)
		assert.Equal(t, domain.ClinicTypeClinic, parts.Type)
		assert.Equal(t, 7, parts.Sequence)
	}
}

func TestParseClinicCode_Rejects(t *testing.T) {
	cases := []string{
		"",
		"OB-SEOUL-CLINIC",            // missing sequence
		"XX-SEOUL-CLINIC-001",        // wrong prefix
		"OB-ATLANTIS-CLINIC-001",     // unknown region
		"OB-SEOUL-PHARMACY-001",      // unknown type
		"OB-SEOUL-CLINIC-1",          // sequence not 3 digits
		"OB-SEOUL-CLINIC-12A",        // sequence not numeric
		"OB-SEOUL-CLINIC-001-202608", // too many segments
	}
	for _, c := range cases {
		_, err := ParseClinicCode(c)
		assert.Error(t, err, c)
		assert.False(t, ValidateClinicCode(c), c)
	}
}

func TestValidateInviteCodeFormat_Valid(t *testing.T) {
	report := ValidateInviteCodeFormat("OB-SEOUL-CLINIC-001-202608-7K2M9QX4")
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestValidateInviteCodeFormat_CollectsAllDefects(t *testing.T) {
	// Bad clinic type, bad year-month and bad suffix at once: callers get the
	// full list, not just the first hit.
	report := ValidateInviteCodeFormat("OB-SEOUL-PHARMACY-001-2026AB-7K2M9QX!")
	require.False(t, report.Valid)
	assert.Len(t, report.Errors, 3)
}

func TestValidateInviteCodeFormat_SegmentCount(t *testing.T) {
	report := ValidateInviteCodeFormat("INVALID-CODE-123")
	require.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "segments")
	assert.NotEmpty(t, report.Suggestions)
}

func TestValidateInviteCodeFormat_MonthRange(t *testing.T) {
	report := ValidateInviteCodeFormat("OB-SEOUL-CLINIC-001-202613-7K2M9QX4")
	require.False(t, report.Valid)
	assert.Contains(t, report.Errors[0], "month")

	report = ValidateInviteCodeFormat("OB-SEOUL-CLINIC-001-202600-7K2M9QX4")
	assert.False(t, report.Valid)
}

func TestBuildInviteCode_RoundTrip(t *testing.T) {
	code := BuildInviteCode("OB-DAEGU-HOSPITAL-003", "202608", "AB12CD34")
	report := ValidateInviteCodeFormat(code)
	require.True(t, report.Valid, report.Errors)
	assert.Equal(t, "OB-DAEGU-HOSPITAL-003", ExtractClinicCode(code))
}

func TestExtractClinicCode(t *testing.T) {
	assert.Equal(t, "OB-SEOUL-CLINIC-001", ExtractClinicCode("OB-SEOUL-CLINIC-001-202608-7K2M9QX4"))
	assert.Equal(t, "", ExtractClinicCode("INVALID-CODE-123"))
	assert.Equal(t, "", ExtractClinicCode("OB-SEOUL"))
	assert.Equal(t, "", ExtractClinicCode(""))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "OB-SEOUL-CLINIC-001-202608-7K2M9QX4",
		Sanitize("  ob-seoul-clinic-001-202608-7k2m9qx4 "))
	// Underscores and spaces vanish rather than turning into dashes.
	assert.Equal(t, "OBSEOULCLINIC-001", Sanitize("OB_SEOUL CLINIC-001!"))
	assert.Equal(t, "OBSEOUL", Sanitize("ob seoul"))
	assert.Equal(t, "", Sanitize("???"))
}
