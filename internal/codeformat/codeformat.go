package codeformat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
)

// Clinic codes look like OB-SEOUL-CLINIC-001; invite codes append a year-month
// and a random suffix: OB-SEOUL-CLINIC-001-202608-7K2M9QX4.
const (
	Prefix = "OB"

	clinicSegments = 4
	inviteSegments = clinicSegments + 2

	SuffixLength   = 8
	SuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	sequenceDigits = 3
	MaxSequence    = 999
)

// ClinicCodeParts is the decomposed form of a valid clinic code.
type ClinicCodeParts struct {
	Region   domain.Region
	Type     domain.ClinicType
	Sequence int
}

// BuildClinicCode formats OB-{REGION}-{TYPE}-{SEQ3}.
func BuildClinicCode(region domain.Region, clinicType domain.ClinicType, seq int) string {
	return fmt.Sprintf("%s-%s-%s-%03d", Prefix, region, clinicType.SegmentCode(), seq)
}

// ParseClinicCode validates s against the clinic code grammar and returns its
// parts.
func ParseClinicCode(s string) (ClinicCodeParts, error) {
	segs := strings.Split(s, "-")
	if len(segs) != clinicSegments {
		return ClinicCodeParts{}, fmt.Errorf("clinic code must have %d dash-separated segments, got %d", clinicSegments, len(segs))
	}
	if segs[0] != Prefix {
		return ClinicCodeParts{}, fmt.Errorf("clinic code must start with %q", Prefix)
	}
	region := domain.Region(segs[1])
	if !region.Valid() {
		return ClinicCodeParts{}, fmt.Errorf("unknown region segment %q", segs[1])
	}
	clinicType, ok := domain.ClinicTypeFromSegment(segs[2])
	if !ok {
		return ClinicCodeParts{}, fmt.Errorf("unknown type segment %q", segs[2])
	}
	if len(segs[3]) != sequenceDigits || !allDigits(segs[3]) {
		return ClinicCodeParts{}, fmt.Errorf("sequence segment must be %d digits, got %q", sequenceDigits, segs[3])
	}
	seq, err := strconv.Atoi(segs[3])
	if err != nil {
		return ClinicCodeParts{}, fmt.Errorf("sequence segment %q is not a number", segs[3])
	}
	return ClinicCodeParts{Region: region, Type: clinicType, Sequence: seq}, nil
}

// ValidateClinicCode reports whether s is a well-formed clinic code.
func ValidateClinicCode(s string) bool {
	_, err := ParseClinicCode(s)
	return err == nil
}

// BuildInviteCode assembles {clinicCode}-{yearMonth}-{suffix}. The caller is
// responsible for passing a valid clinic code and a suffix drawn from
// SuffixAlphabet.
func BuildInviteCode(clinicCode, yearMonth, suffix string) string {
	return clinicCode + "-" + yearMonth + "-" + suffix
}

// FormatReport lists every structural defect found in an invite code, so the
// caller can render actionable feedback instead of a bare rejection.
type FormatReport struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ValidateInviteCodeFormat checks s against the invite code grammar. All
// defects are collected rather than failing on the first one.
func ValidateInviteCodeFormat(s string) FormatReport {
	var report FormatReport

	segs := strings.Split(s, "-")
	if len(segs) != inviteSegments {
		report.Errors = append(report.Errors,
			fmt.Sprintf("invite code must have %d dash-separated segments, got %d", inviteSegments, len(segs)))
		report.Suggestions = append(report.Suggestions,
			"invite codes look like OB-SEOUL-CLINIC-001-202608-7K2M9QX4")
		return report
	}

	clinicPart := strings.Join(segs[:clinicSegments], "-")
	if _, err := ParseClinicCode(clinicPart); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("clinic code part: %v", err))
		report.Suggestions = append(report.Suggestions,
			"the code starts with the clinic code printed on your onboarding sheet, e.g. OB-SEOUL-CLINIC-001")
	}

	ym := segs[clinicSegments]
	if len(ym) != 6 || !allDigits(ym) {
		report.Errors = append(report.Errors,
			fmt.Sprintf("year-month segment must be 6 digits (YYYYMM), got %q", ym))
	} else if month, _ := strconv.Atoi(ym[4:]); month < 1 || month > 12 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("year-month segment %q has month outside 01-12", ym))
	}

	suffix := segs[clinicSegments+1]
	if len(suffix) != SuffixLength {
		report.Errors = append(report.Errors,
			fmt.Sprintf("suffix must be %d characters, got %d", SuffixLength, len(suffix)))
	}
	if !fromAlphabet(suffix, SuffixAlphabet) {
		report.Errors = append(report.Errors,
			"suffix may only contain A-Z and 0-9")
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// ExtractClinicCode strips the last two dash segments of an invite code and
// returns the clinic code prefix, or "" when the prefix is not a valid clinic
// code.
func ExtractClinicCode(inviteCode string) string {
	segs := strings.Split(inviteCode, "-")
	if len(segs) <= 2 {
		return ""
	}
	clinicPart := strings.Join(segs[:len(segs)-2], "-")
	if !ValidateClinicCode(clinicPart) {
		return ""
	}
	return clinicPart
}

// Sanitize normalizes raw user input: uppercase, with every character outside
// [A-Z0-9-] removed.
func Sanitize(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fromAlphabet(s, alphabet string) bool {
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
