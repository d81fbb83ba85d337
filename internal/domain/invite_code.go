package domain

import "time"

// Invite code list statuses (derived, not stored).
const (
	InviteStatusActive   = "active"
	InviteStatusInactive = "inactive"
	InviteStatusExpired  = "expired"
)

// InviteCode grants a customer permission to join one clinic. Only the HMAC of
// the plaintext code is persisted; the plaintext is shown to the issuer once at
// creation and never stored or logged.
type InviteCode struct {
	ID          string     `json:"id"`
	CodeHash    string     `json:"-"`
	ClinicCode  string     `json:"clinic_code"`
	Description string     `json:"description"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	UsedCount   int        `json:"used_count"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedBy   string     `json:"created_by"`
}

// Expired reports whether the code is past its expiry. Expiry is terminal
// regardless of the active flag or remaining uses.
func (c *InviteCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Exhausted reports whether the usage cap has been reached.
func (c *InviteCode) Exhausted() bool {
	return c.MaxUses != nil && c.UsedCount >= *c.MaxUses
}

// Status derives the list-facing status. Expiry wins over the active flag;
// exhausted codes report inactive.
func (c *InviteCode) Status(now time.Time) string {
	switch {
	case c.Expired(now):
		return InviteStatusExpired
	case !c.Active || c.Exhausted():
		return InviteStatusInactive
	default:
		return InviteStatusActive
	}
}

// RemainingUses returns uses left, or nil for unlimited codes.
func (c *InviteCode) RemainingUses() *int {
	if c.MaxUses == nil {
		return nil
	}
	left := *c.MaxUses - c.UsedCount
	if left < 0 {
		left = 0
	}
	return &left
}
