package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/codeformat"
	"github.com/jinhyuck8504/obdoc-sub000/internal/config"
	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
	"github.com/jinhyuck8504/obdoc-sub000/internal/ratelimit"
	"github.com/jinhyuck8504/obdoc-sub000/internal/repository"
	"github.com/jinhyuck8504/obdoc-sub000/internal/secure"
)

const (
	maxDescriptionLength = 200
	minMaxUses           = 1
	maxMaxUses           = 1000
)

// InviteCodeService issues, lists and deactivates invite codes for a clinic.
type InviteCodeService interface {
	Issue(ctx context.Context, req IssueInviteCodeRequest) (*IssueInviteCodeResponse, error)
	List(ctx context.Context, req ListInviteCodesRequest) (*ListInviteCodesResponse, error)
	Deactivate(ctx context.Context, codeID, issuerID string) error
}

type inviteCodeService struct {
	clinics repository.ClinicsRepo
	codes   repository.InviteCodesRepo
	audit   repository.AuditRepo
	limiter ratelimit.Limiter
	limit   config.WindowLimit
	hasher  *secure.Hasher
	logger  *zap.Logger
}

func NewInviteCodeService(
	clinics repository.ClinicsRepo,
	codes repository.InviteCodesRepo,
	audit repository.AuditRepo,
	limiter ratelimit.Limiter,
	limit config.WindowLimit,
	hasher *secure.Hasher,
	logger *zap.Logger,
) InviteCodeService {
	return &inviteCodeService{
		clinics: clinics,
		codes:   codes,
		audit:   audit,
		limiter: limiter,
		limit:   limit,
		hasher:  hasher,
		logger:  logger,
	}
}

// IssueInviteCodeRequest input for invite code issuance.
type IssueInviteCodeRequest struct {
	ClinicCode  string
	Description string
	MaxUses     *int
	ExpiresAt   *time.Time

	IssuerID  string
	ClientIP  string
	UserAgent string
}

// IssueInviteCodeResponse carries the plaintext code. This is the only place
// it ever exists outside the issuer's screen; only the hash is persisted.
type IssueInviteCodeResponse struct {
	PlainCode string             `json:"code"`
	Record    *domain.InviteCode `json:"record"`
}

func (s *inviteCodeService) Issue(ctx context.Context, req IssueInviteCodeRequest) (*IssueInviteCodeResponse, error) {
	record := func(success bool, reason string) {
		err := s.audit.RecordAttempt(ctx, &domain.AttemptRecord{
			Actor:     req.IssuerID,
			Action:    domain.ActionInviteIssue,
			ClientIP:  req.ClientIP,
			UserAgent: req.UserAgent,
			Timestamp: time.Now(),
			Success:   success,
			Details: domain.AttemptDetails{
				ClinicCode: req.ClinicCode,
				Reason:     reason,
			},
		})
		if err != nil {
			s.logger.Error("failed to record invite issuance attempt", zap.Error(err))
		}
	}

	decision, err := s.limiter.CheckAndConsume(ctx, domain.ActionInviteIssue, req.IssuerID, s.limit.Max, s.limit.Window)
	if err != nil {
		record(false, "rate limiter unavailable")
		return nil, storeError(err)
	}
	if !decision.Allowed {
		s.logger.Warn("invite code issuance rate limited",
			zap.String("issuer_id", req.IssuerID),
			zap.String("ip_address", req.ClientIP),
		)
		record(false, "rate limited")
		e := newError(CodeRateLimited, "too many invite codes issued, try again later")
		e.RateLimit = &decision
		return nil, e
	}

	req.Description = strings.TrimSpace(req.Description)
	// Rune count, not bytes: descriptions are routinely Korean.
	if utf8.RuneCountInString(req.Description) > maxDescriptionLength {
		record(false, "description too long")
		return nil, newError(CodeInvalidInput, "description must be at most 200 characters")
	}
	if req.MaxUses != nil && (*req.MaxUses < minMaxUses || *req.MaxUses > maxMaxUses) {
		record(false, "max_uses out of range")
		return nil, newError(CodeInvalidInput, "max_uses must be between 1 and 1000")
	}
	// A past expiresAt is accepted; the code is simply born expired and every
	// validation of it returns Expired.

	clinic, err := s.clinics.GetByCode(ctx, req.ClinicCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			record(false, "clinic not found")
			return nil, newError(CodeNotFound, "clinic not found")
		}
		record(false, "store error")
		return nil, storeError(err)
	}
	if clinic.CreatedBy != req.IssuerID {
		s.logger.Warn("invite code issuance not authorized",
			zap.String("issuer_id", req.IssuerID),
			zap.String("clinic_code", req.ClinicCode),
			zap.String("ip_address", req.ClientIP),
		)
		record(false, "not owner")
		return nil, newError(CodeNotAuthorized, "you do not own this clinic")
	}
	if !clinic.Active {
		record(false, "clinic inactive")
		return nil, newError(CodeClinicInactive, "this clinic has been deactivated")
	}

	// An HMAC collision means the generated suffix already exists for this
	// clinic; vanishingly unlikely, but retried the same bounded way as
	// clinic codes.
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		suffix, err := secure.RandomToken(codeformat.SuffixLength, codeformat.SuffixAlphabet)
		if err != nil {
			record(false, "random source failed")
			return nil, wrapError(CodeSystemError, "an internal error occurred", err)
		}
		plainCode := codeformat.BuildInviteCode(clinic.Code, time.Now().Format("200601"), suffix)

		code := &domain.InviteCode{
			CodeHash:    s.hasher.Hash(plainCode),
			ClinicCode:  clinic.Code,
			Description: req.Description,
			MaxUses:     req.MaxUses,
			Active:      true,
			CreatedAt:   time.Now(),
			ExpiresAt:   req.ExpiresAt,
			CreatedBy:   req.IssuerID,
		}

		id, err := s.codes.Create(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				continue
			}
			record(false, "store error")
			return nil, storeError(err)
		}
		code.ID = id

		s.logger.Info("invite code issued",
			zap.String("invite_code_id", id),
			zap.String("clinic_code", clinic.Code),
			zap.String("masked_code", secure.MaskCode(plainCode)),
		)
		record(true, "")
		return &IssueInviteCodeResponse{PlainCode: plainCode, Record: code}, nil
	}

	record(false, "generation exhausted")
	return nil, newError(CodeGenerationExhausted, "could not generate a unique invite code, try again")
}

// ListInviteCodesRequest scopes the listing to the issuer's clinic.
type ListInviteCodesRequest struct {
	ClinicCode string
	IssuerID   string
	Status     string // active | inactive | expired, empty for all
	SortAsc    bool
	Page       int
	Size       int
}

// ListInviteCodesResponse one page of codes plus derived statuses.
type ListInviteCodesResponse struct {
	Codes []InviteCodeView `json:"codes"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// InviteCodeView is the list item shape: the record plus its derived status.
type InviteCodeView struct {
	*domain.InviteCode
	Status        string `json:"status"`
	RemainingUses *int   `json:"remaining_uses,omitempty"`
}

func (s *inviteCodeService) List(ctx context.Context, req ListInviteCodesRequest) (*ListInviteCodesResponse, error) {
	if req.ClinicCode == "" {
		return nil, newError(CodeInvalidInput, "clinic code is required")
	}
	switch req.Status {
	case "", domain.InviteStatusActive, domain.InviteStatusInactive, domain.InviteStatusExpired:
	default:
		return nil, newError(CodeInvalidInput, "status must be active, inactive or expired")
	}

	clinic, err := s.clinics.GetByCode(ctx, req.ClinicCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, "clinic not found")
		}
		return nil, storeError(err)
	}
	if clinic.CreatedBy != req.IssuerID {
		return nil, newError(CodeNotAuthorized, "you do not own this clinic")
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Size <= 0 || req.Size > 100 {
		req.Size = 20
	}

	codes, total, err := s.codes.List(ctx, repository.InviteCodeFilters{
		ClinicCode: req.ClinicCode,
		Status:     req.Status,
		SortAsc:    req.SortAsc,
	}, req.Page, req.Size)
	if err != nil {
		return nil, storeError(err)
	}

	now := time.Now()
	views := make([]InviteCodeView, 0, len(codes))
	for _, code := range codes {
		views = append(views, InviteCodeView{
			InviteCode:    code,
			Status:        code.Status(now),
			RemainingUses: code.RemainingUses(),
		})
	}

	return &ListInviteCodesResponse{Codes: views, Total: total, Page: req.Page, Size: req.Size}, nil
}

// Deactivate soft-deactivates one code; idempotent, owner only.
func (s *inviteCodeService) Deactivate(ctx context.Context, codeID, issuerID string) error {
	code, err := s.codes.GetByID(ctx, codeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeNotFound, "invite code not found")
		}
		return storeError(err)
	}
	if code.CreatedBy != issuerID {
		return newError(CodeNotAuthorized, "you do not own this invite code")
	}
	if !code.Active {
		// Already deactivated; deactivation is idempotent.
		return nil
	}
	if err := s.codes.Deactivate(ctx, codeID); err != nil {
		return storeError(err)
	}
	s.logger.Info("invite code deactivated",
		zap.String("invite_code_id", codeID),
		zap.String("issuer_id", issuerID),
	)
	return nil
}
