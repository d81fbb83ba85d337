package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/codeformat"
	"github.com/jinhyuck8504/obdoc-sub000/internal/config"
	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
	"github.com/jinhyuck8504/obdoc-sub000/internal/ratelimit"
	"github.com/jinhyuck8504/obdoc-sub000/internal/repository"
	"github.com/jinhyuck8504/obdoc-sub000/internal/secure"
)

// maxIssueAttempts bounds the retry loop on duplicate clinic codes. A bounded
// loop, not recursion: pathological contention must fail with
// GENERATION_EXHAUSTED instead of growing the stack.
const maxIssueAttempts = 5

// ClinicCodeService issues and deactivates clinic (hospital) codes.
type ClinicCodeService interface {
	IssueClinicCode(ctx context.Context, req IssueClinicCodeRequest) (*domain.Clinic, error)
	ListClinics(ctx context.Context, req ListClinicsRequest) (*ListClinicsResponse, error)
	DeactivateClinic(ctx context.Context, code, actorID string) error
}

type clinicCodeService struct {
	clinics repository.ClinicsRepo
	audit   repository.AuditRepo
	limiter ratelimit.Limiter
	limit   config.WindowLimit
	sealer  *secure.Sealer // nil when PII sealing is not configured
	logger  *zap.Logger
}

// NewClinicCodeService wires the clinic code issuer. sealer may be nil.
func NewClinicCodeService(
	clinics repository.ClinicsRepo,
	audit repository.AuditRepo,
	limiter ratelimit.Limiter,
	limit config.WindowLimit,
	sealer *secure.Sealer,
	logger *zap.Logger,
) ClinicCodeService {
	return &clinicCodeService{
		clinics: clinics,
		audit:   audit,
		limiter: limiter,
		limit:   limit,
		sealer:  sealer,
		logger:  logger,
	}
}

// IssueClinicCodeRequest input for clinic code issuance.
type IssueClinicCodeRequest struct {
	Name    string
	Type    domain.ClinicType
	Region  domain.Region
	Address string
	Phone   string

	ActorID   string
	ClientIP  string
	UserAgent string
}

func (s *clinicCodeService) IssueClinicCode(ctx context.Context, req IssueClinicCodeRequest) (*domain.Clinic, error) {
	record := func(success bool, reason, clinicCode string) {
		s.recordAttempt(ctx, req, success, reason, clinicCode)
	}

	decision, err := s.limiter.CheckAndConsume(ctx, domain.ActionClinicIssue, req.ClientIP, s.limit.Max, s.limit.Window)
	if err != nil {
		record(false, "rate limiter unavailable", "")
		return nil, storeError(err)
	}
	if !decision.Allowed {
		s.logger.Warn("clinic code issuance rate limited",
			zap.String("ip_address", req.ClientIP),
			zap.String("user_agent", req.UserAgent),
		)
		record(false, "rate limited", "")
		e := newError(CodeRateLimited, "too many clinic code requests, try again later")
		e.RateLimit = &decision
		return nil, e
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		record(false, "missing name", "")
		return nil, newError(CodeInvalidInput, "clinic name is required")
	}
	if !req.Type.Valid() {
		record(false, "invalid type", "")
		return nil, newError(CodeInvalidInput, "clinic type must be clinic, traditional-clinic or hospital")
	}
	if !req.Region.Valid() {
		record(false, "invalid region", "")
		return nil, newError(CodeInvalidInput, "unknown region")
	}

	phone := req.Phone
	if phone != "" && s.sealer != nil {
		sealed, err := s.sealer.Seal(phone)
		if err != nil {
			record(false, "pii sealing failed", "")
			return nil, wrapError(CodeSystemError, "an internal error occurred", err)
		}
		phone = sealed
	}

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		seq, err := s.clinics.NextSequence(ctx, req.Region, req.Type)
		if err != nil {
			record(false, "sequence allocation failed", "")
			return nil, storeError(err)
		}
		if seq > codeformat.MaxSequence {
			record(false, "sequence space exhausted", "")
			return nil, newError(CodeGenerationExhausted, "no clinic codes left for this region and type")
		}

		clinic := &domain.Clinic{
			Code:      codeformat.BuildClinicCode(req.Region, req.Type, seq),
			Name:      req.Name,
			Type:      req.Type,
			Region:    req.Region,
			Address:   req.Address,
			Phone:     phone,
			Active:    true,
			CreatedBy: req.ActorID,
			CreatedAt: time.Now(),
		}

		clinicID, err := s.clinics.Create(ctx, clinic)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				// Another issuer raced us to this sequence; take the next one.
				continue
			}
			record(false, "store error", "")
			return nil, storeError(err)
		}
		clinic.ClinicID = clinicID

		s.logger.Info("clinic code issued",
			zap.String("clinic_code", clinic.Code),
			zap.String("region", string(req.Region)),
			zap.String("clinic_type", string(req.Type)),
		)
		record(true, "", clinic.Code)
		return clinic, nil
	}

	record(false, "generation exhausted", "")
	return nil, newError(CodeGenerationExhausted, "could not allocate a unique clinic code, try again")
}

// ListClinicsRequest input for clinic search.
type ListClinicsRequest struct {
	Region string
	Type   string
	Active *bool
	Search string
	Page   int
	Size   int
}

type ListClinicsResponse struct {
	Clinics []*domain.Clinic `json:"clinics"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

func (s *clinicCodeService) ListClinics(ctx context.Context, req ListClinicsRequest) (*ListClinicsResponse, error) {
	filter := repository.ClinicFilters{
		Active: req.Active,
		Search: strings.TrimSpace(req.Search),
	}
	if req.Region != "" {
		region := domain.Region(req.Region)
		if !region.Valid() {
			return nil, newError(CodeInvalidInput, "unknown region")
		}
		filter.Region = region
	}
	if req.Type != "" {
		clinicType := domain.ClinicType(req.Type)
		if !clinicType.Valid() {
			return nil, newError(CodeInvalidInput, "clinic type must be clinic, traditional-clinic or hospital")
		}
		filter.Type = clinicType
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 || size > 100 {
		size = 20
	}

	clinics, total, err := s.clinics.List(ctx, filter, page, size)
	if err != nil {
		return nil, storeError(err)
	}
	return &ListClinicsResponse{Clinics: clinics, Total: total, Page: page, Size: size}, nil
}

// DeactivateClinic soft-deactivates; only the issuing account may do it.
func (s *clinicCodeService) DeactivateClinic(ctx context.Context, code, actorID string) error {
	clinic, err := s.clinics.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeNotFound, "clinic not found")
		}
		return storeError(err)
	}
	if clinic.CreatedBy != actorID {
		return newError(CodeNotAuthorized, "only the issuing account may deactivate this clinic")
	}
	if err := s.clinics.SetActive(ctx, code, false); err != nil {
		return storeError(err)
	}
	return nil
}

func (s *clinicCodeService) recordAttempt(ctx context.Context, req IssueClinicCodeRequest, success bool, reason, clinicCode string) {
	err := s.audit.RecordAttempt(ctx, &domain.AttemptRecord{
		Actor:     req.ActorID,
		Action:    domain.ActionClinicIssue,
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
		Timestamp: time.Now(),
		Success:   success,
		Details: domain.AttemptDetails{
			ClinicCode: clinicCode,
			Reason:     reason,
		},
	})
	if err != nil {
		s.logger.Error("failed to record clinic issuance attempt", zap.Error(err))
	}
}
