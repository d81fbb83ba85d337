package domain

import "time"

// Audited actions.
const (
	ActionValidate    = "invite_code.validate"
	ActionUse         = "invite_code.use"
	ActionInviteIssue = "invite_code.issue"
	ActionClinicIssue = "clinic_code.issue"
)

// AnonymousActor is recorded when no authenticated identity is present.
const AnonymousActor = "anonymous"

// AttemptRecord is one append-only audit entry. Records are immutable once
// written; the plaintext code never appears here, only its masked form.
type AttemptRecord struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	ClientIP  string         `json:"client_ip"`
	UserAgent string         `json:"user_agent"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Details   AttemptDetails `json:"details"`
}

// AttemptDetails structured detail payload, stored as jsonb.
type AttemptDetails struct {
	MaskedCode  string `json:"masked_code,omitempty"`
	FormatValid bool   `json:"format_valid"`
	ClinicCode  string `json:"clinic_code,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
