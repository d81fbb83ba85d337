package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/alert"
	"github.com/jinhyuck8504/obdoc-sub000/internal/anomaly"
	"github.com/jinhyuck8504/obdoc-sub000/internal/codeformat"
	"github.com/jinhyuck8504/obdoc-sub000/internal/config"
	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
	"github.com/jinhyuck8504/obdoc-sub000/internal/ratelimit"
	"github.com/jinhyuck8504/obdoc-sub000/internal/repository"
	"github.com/jinhyuck8504/obdoc-sub000/internal/secure"
	"github.com/jinhyuck8504/obdoc-sub000/internal/store"
)

// ValidationService runs the invite code validation pipeline and the atomic
// consume operation.
type ValidationService interface {
	// Validate checks a raw code without consuming a use.
	Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error)

	// Use re-runs validation and atomically increments the usage counter.
	Use(ctx context.Context, req UseRequest) (*ValidationResult, error)
}

type validationService struct {
	clinics  repository.ClinicsRepo
	codes    repository.InviteCodesRepo
	audit    repository.AuditRepo
	limiter  ratelimit.Limiter
	limit    config.WindowLimit
	hasher   *secure.Hasher
	detector *anomaly.Detector
	sink     alert.Sink
	cache    store.KV // nil disables result caching
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewValidationService(
	clinics repository.ClinicsRepo,
	codes repository.InviteCodesRepo,
	audit repository.AuditRepo,
	limiter ratelimit.Limiter,
	limit config.WindowLimit,
	hasher *secure.Hasher,
	detector *anomaly.Detector,
	sink alert.Sink,
	cache store.KV,
	cacheTTL time.Duration,
	logger *zap.Logger,
) ValidationService {
	return &validationService{
		clinics:  clinics,
		codes:    codes,
		audit:    audit,
		limiter:  limiter,
		limit:    limit,
		hasher:   hasher,
		detector: detector,
		sink:     sink,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ValidateRequest input for code validation.
type ValidateRequest struct {
	RawCode   string
	ClientIP  string
	UserAgent string
	Actor     string // empty for anonymous callers
}

// UseRequest input for code consumption.
type UseRequest struct {
	RawCode    string
	ConsumerID string
	ClientIP   string
	UserAgent  string
}

// ClinicInfo is the clinic summary returned on successful validation.
type ClinicInfo struct {
	Code   string            `json:"code"`
	Name   string            `json:"name"`
	Type   domain.ClinicType `json:"type"`
	Region domain.Region     `json:"region"`
}

// CodeInfo is the invite code summary returned on successful validation.
type CodeInfo struct {
	ID            string     `json:"id"`
	Description   string     `json:"description,omitempty"`
	UsedCount     int        `json:"used_count"`
	MaxUses       *int       `json:"max_uses,omitempty"`
	RemainingUses *int       `json:"remaining_uses,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// ValidationResult successful pipeline outcome.
type ValidationResult struct {
	Clinic    ClinicInfo         `json:"hospitalInfo"`
	Code      CodeInfo           `json:"codeInfo"`
	RateLimit ratelimit.Decision `json:"-"`
	Cached    bool               `json:"-"`
}

func (s *validationService) Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error) {
	return s.run(ctx, req.RawCode, req.Actor, req.ClientIP, req.UserAgent, domain.ActionValidate, false)
}

func (s *validationService) Use(ctx context.Context, req UseRequest) (*ValidationResult, error) {
	return s.run(ctx, req.RawCode, req.ConsumerID, req.ClientIP, req.UserAgent, domain.ActionUse, true)
}

// run executes the pipeline stages strictly in order, short-circuiting on the
// first failure. Every path, success or failure, appends exactly one
// AttemptRecord before returning.
func (s *validationService) run(ctx context.Context, rawCode, actor, clientIP, userAgent, action string, consume bool) (*ValidationResult, error) {
	now := time.Now()
	if actor == "" {
		actor = domain.AnonymousActor
	}
	sanitized := codeformat.Sanitize(rawCode)
	masked := secure.MaskCode(sanitized)

	record := func(success bool, formatValid bool, clinicCode, reason string) error {
		err := s.audit.RecordAttempt(ctx, &domain.AttemptRecord{
			Actor:     actor,
			Action:    action,
			ClientIP:  clientIP,
			UserAgent: userAgent,
			Timestamp: time.Now(),
			Success:   success,
			Details: domain.AttemptDetails{
				MaskedCode:  masked,
				FormatValid: formatValid,
				ClinicCode:  clinicCode,
				Reason:      reason,
			},
		})
		if err != nil {
			s.logger.Error("failed to record validation attempt",
				zap.String("ip_address", clientIP),
				zap.Error(err),
			)
		}
		return err
	}

	// Stage 1: rate limit per client IP. Both validate and use draw from the
	// same budget.
	decision, err := s.limiter.CheckAndConsume(ctx, domain.ActionValidate, clientIP, s.limit.Max, s.limit.Window)
	if err != nil {
		if rerr := record(false, false, "", "rate limiter unavailable"); rerr != nil {
			return nil, wrapError(CodeSystemError, "an internal error occurred", rerr)
		}
		return nil, storeError(err)
	}

	// fail makes the attempt durable before any error reaches the caller; an
	// audit write failure outranks the business error.
	fail := func(e *Error, formatValid bool, clinicCode, reason string) error {
		if rerr := record(false, formatValid, clinicCode, reason); rerr != nil {
			return wrapError(CodeSystemError, "an internal error occurred", rerr)
		}
		e.RateLimit = &decision
		return e
	}

	if !decision.Allowed {
		s.logger.Warn("invite code validation rate limited",
			zap.String("ip_address", clientIP),
			zap.String("user_agent", userAgent),
		)
		ferr := fail(newError(CodeRateLimited, "too many attempts, try again later"), false, "", "rate limited")
		s.scanAsync(clientIP)
		return nil, ferr
	}

	// Stage 2: sanitize and check the grammar.
	report := codeformat.ValidateInviteCodeFormat(sanitized)
	if !report.Valid {
		e := newError(CodeInvalidFormat, report.Errors[0])
		e.Format = &report
		ferr := fail(e, false, "", "invalid format: "+report.Errors[0])
		s.scanAsync(clientIP)
		return nil, ferr
	}

	// Stage 3: clinic extraction.
	clinicCode := codeformat.ExtractClinicCode(sanitized)
	if clinicCode == "" {
		e := newError(CodeInvalidFormat, "the code does not contain a recognizable clinic code")
		ferr := fail(e, true, "", "clinic code extraction failed")
		s.scanAsync(clientIP)
		return nil, ferr
	}

	codeHash := s.hasher.Hash(sanitized)

	// Cache hit short-circuits the store lookups only; the rate limit above
	// was already consumed and the attempt below is still recorded. Expiry is
	// re-checked on every hit so a code cannot outlive its expiresAt inside
	// the cache TTL.
	if !consume {
		if cached := s.cacheGet(ctx, codeHash, clientIP); cached != nil {
			if exp := cached.Code.ExpiresAt; exp != nil && !exp.After(now) {
				s.cacheDel(ctx, codeHash, clientIP)
				e := newError(CodeExpired, fmt.Sprintf("this code expired on %s", exp.Format("2006-01-02")))
				return nil, fail(e, true, clinicCode, "code expired")
			}
			if err := record(true, true, clinicCode, "cache hit"); err != nil {
				return nil, wrapError(CodeSystemError, "an internal error occurred", err)
			}
			cached.RateLimit = decision
			cached.Cached = true
			return cached, nil
		}
	}

	// Stage 4: the clinic must exist and be active.
	clinic, err := s.clinics.GetByCode(ctx, clinicCode)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		if rerr := record(false, true, clinicCode, "store error"); rerr != nil {
			return nil, wrapError(CodeSystemError, "an internal error occurred", rerr)
		}
		return nil, storeError(err)
	}
	if clinic == nil || !clinic.Active {
		e := newError(CodeClinicInactive, "this clinic is not accepting new members")
		return nil, fail(e, true, clinicCode, "clinic missing or inactive")
	}

	// Stage 5: the code must exist for this clinic and be active.
	code, err := s.codes.GetByHash(ctx, codeHash, clinicCode)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		if rerr := record(false, true, clinicCode, "store error"); rerr != nil {
			return nil, wrapError(CodeSystemError, "an internal error occurred", rerr)
		}
		return nil, storeError(err)
	}
	if code == nil || !code.Active {
		e := newError(CodeNotFound, "invalid invite code")
		ferr := fail(e, true, clinicCode, "code missing or inactive")
		s.scanAsync(clientIP)
		return nil, ferr
	}

	// Stage 6: expiry is terminal regardless of anything else.
	if code.Expired(now) {
		e := newError(CodeExpired, fmt.Sprintf("this code expired on %s", code.ExpiresAt.Format("2006-01-02")))
		return nil, fail(e, true, clinicCode, "code expired")
	}

	// Stage 7: usage cap.
	if code.Exhausted() {
		e := newError(CodeMaxUsesExceeded, fmt.Sprintf("this code has reached its usage limit (%d/%d)", code.UsedCount, *code.MaxUses))
		return nil, fail(e, true, clinicCode, "usage limit reached")
	}

	if consume {
		// The store re-checks every guard and increments in one atomic round
		// trip, so a race between stage 7 and here cannot oversell the code.
		updated, err := s.codes.Consume(ctx, codeHash, clinicCode, now)
		if err != nil {
			if errors.Is(err, repository.ErrNotConsumable) {
				return nil, s.classifyConsumeFailure(ctx, codeHash, clinicCode, decision, record)
			}
			if rerr := record(false, true, clinicCode, "store error"); rerr != nil {
				return nil, wrapError(CodeSystemError, "an internal error occurred", rerr)
			}
			return nil, storeError(err)
		}
		code = updated
		s.cacheDel(ctx, codeHash, clientIP)
	}

	// Stage 8: success. The attempt must be durable before we answer.
	if err := record(true, true, clinicCode, ""); err != nil {
		return nil, wrapError(CodeSystemError, "an internal error occurred", err)
	}

	result := &ValidationResult{
		Clinic: ClinicInfo{
			Code:   clinic.Code,
			Name:   clinic.Name,
			Type:   clinic.Type,
			Region: clinic.Region,
		},
		Code: CodeInfo{
			ID:            code.ID,
			Description:   code.Description,
			UsedCount:     code.UsedCount,
			MaxUses:       code.MaxUses,
			RemainingUses: code.RemainingUses(),
			ExpiresAt:     code.ExpiresAt,
		},
		RateLimit: decision,
	}

	if !consume {
		s.cacheSet(ctx, codeHash, clientIP, result)
	}
	return result, nil
}

// classifyConsumeFailure re-reads the code after a failed atomic consume to
// tell the caller which terminal state won the race.
func (s *validationService) classifyConsumeFailure(
	ctx context.Context,
	codeHash, clinicCode string,
	decision ratelimit.Decision,
	record func(success bool, formatValid bool, clinicCode, reason string) error,
) error {
	now := time.Now()
	code, err := s.codes.GetByHash(ctx, codeHash, clinicCode)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		if rerr := record(false, true, clinicCode, "store error"); rerr != nil {
			return wrapError(CodeSystemError, "an internal error occurred", rerr)
		}
		return storeError(err)
	}

	var e *Error
	var reason string
	switch {
	case code == nil || !code.Active:
		reason = "code missing or inactive"
		e = newError(CodeNotFound, "invalid invite code")
	case code.Expired(now):
		reason = "code expired"
		e = newError(CodeExpired, fmt.Sprintf("this code expired on %s", code.ExpiresAt.Format("2006-01-02")))
	case code.Exhausted():
		reason = "usage limit reached"
		e = newError(CodeMaxUsesExceeded, fmt.Sprintf("this code has reached its usage limit (%d/%d)", code.UsedCount, *code.MaxUses))
	default:
		reason = "consume raced"
		e = newError(CodeNotFound, "invalid invite code")
	}
	if rerr := record(false, true, clinicCode, reason); rerr != nil {
		return wrapError(CodeSystemError, "an internal error occurred", rerr)
	}
	e.RateLimit = &decision
	return e
}

// scanAsync runs the anomaly scan off the request path. Alerting is
// fire-and-forget: it must add neither latency nor failure modes to the
// request.
func (s *validationService) scanAsync(clientIP string) {
	if s.detector == nil || clientIP == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		since := time.Now().Add(-s.detector.Window())
		attempts, err := s.audit.RecentByIP(ctx, clientIP, since, 200)
		if err != nil {
			s.logger.Error("anomaly scan failed to load attempts",
				zap.String("ip_address", clientIP),
				zap.Error(err),
			)
			return
		}

		report := s.detector.Analyze(attempts)
		if !report.Suspicious {
			return
		}

		s.logger.Warn("suspicious validation pattern",
			zap.String("ip_address", clientIP),
			zap.Strings("reasons", report.Reasons),
			zap.String("severity", string(report.Severity)),
		)
		if s.sink == nil {
			return
		}
		err = s.sink.Raise(ctx, alert.Alert{
			Type:     "invite_code_abuse",
			Severity: string(report.Severity),
			ClientIP: clientIP,
			Details:  map[string]any{"reasons": report.Reasons},
			RaisedAt: time.Now(),
		})
		if err != nil {
			s.logger.Error("failed to raise anomaly alert", zap.Error(err))
		}
	}()
}

func cacheKey(codeHash, clientIP string) string {
	return "validate:" + codeHash + ":" + clientIP
}

func (s *validationService) cacheGet(ctx context.Context, codeHash, clientIP string) *ValidationResult {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(codeHash, clientIP))
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("validation cache read failed", zap.Error(err))
		}
		return nil
	}
	var result ValidationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil
	}
	return &result
}

func (s *validationService) cacheSet(ctx context.Context, codeHash, clientIP string, result *ValidationResult) {
	if s.cache == nil {
		return
	}
	// The entry must not outlive the code: cap the TTL at time-to-expiry.
	ttl := s.cacheTTL
	if exp := result.Code.ExpiresAt; exp != nil {
		if until := time.Until(*exp); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(codeHash, clientIP), string(raw), ttl); err != nil {
		s.logger.Warn("validation cache write failed", zap.Error(err))
	}
}

func (s *validationService) cacheDel(ctx context.Context, codeHash, clientIP string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(codeHash, clientIP)); err != nil {
		s.logger.Warn("validation cache invalidation failed", zap.Error(err))
	}
}
