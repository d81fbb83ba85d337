package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/service"
)

const maxBodyBytes = 64 << 10

// InviteCodeHandler exposes validation, consumption and issuer management of
// invite codes.
type InviteCodeHandler struct {
	validator service.ValidationService
	issuer    service.InviteCodeService
	logger    *zap.Logger
}

func NewInviteCodeHandler(validator service.ValidationService, issuer service.InviteCodeService, logger *zap.Logger) *InviteCodeHandler {
	return &InviteCodeHandler{validator: validator, issuer: issuer, logger: logger}
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
	*service.ValidationResult
}

// Validate handles POST /api/v1/invite-codes/validate. Anonymous: candidates
// call this during signup, before they have an account.
func (h *InviteCodeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "invalid request body",
			ErrorCode: string(service.CodeInvalidInput),
		})
		return
	}

	actor := ""
	if id, ok := IdentityFrom(r.Context()); ok {
		actor = id.UserID
	}

	result, err := h.validator.Validate(r.Context(), service.ValidateRequest{
		RawCode:   req.Code,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		Actor:     actor,
	})
	if err != nil {
		h.logFailure(r, "invite code validation failed", err)
		writeServiceError(w, err)
		return
	}

	setRateHeaders(w, result.RateLimit)
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, ValidationResult: result})
}

type useRequest struct {
	Code string `json:"code"`
}

// Use handles POST /api/v1/invite-codes/use. Requires authentication: the
// consuming account must already exist when the use is recorded.
func (h *InviteCodeHandler) Use(w http.ResponseWriter, r *http.Request) {
	var req useRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "invalid request body",
			ErrorCode: string(service.CodeInvalidInput),
		})
		return
	}

	id, _ := IdentityFrom(r.Context())
	result, err := h.validator.Use(r.Context(), service.UseRequest{
		RawCode:    req.Code,
		ConsumerID: id.UserID,
		ClientIP:   clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.logFailure(r, "invite code use failed", err)
		writeServiceError(w, err)
		return
	}

	setRateHeaders(w, result.RateLimit)
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, ValidationResult: result})
}

type createInviteRequest struct {
	ClinicCode  string `json:"clinic_code"`
	Description string `json:"description"`
	MaxUses     *int   `json:"max_uses"`
	ExpiresAt   string `json:"expires_at"`
}

// Create handles POST /api/v1/invite-codes. Issuer only.
func (h *InviteCodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "invalid request body",
			ErrorCode: string(service.CodeInvalidInput),
		})
		return
	}

	expiresAt, err := parseTimestamp(req.ExpiresAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "expires_at must be RFC 3339",
			ErrorCode: string(service.CodeInvalidInput),
		})
		return
	}

	id, _ := IdentityFrom(r.Context())
	resp, err := h.issuer.Issue(r.Context(), service.IssueInviteCodeRequest{
		ClinicCode:  req.ClinicCode,
		Description: req.Description,
		MaxUses:     req.MaxUses,
		ExpiresAt:   expiresAt,
		IssuerID:    id.UserID,
		ClientIP:    clientIP(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		h.logFailure(r, "invite code issuance failed", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/v1/invite-codes?clinic_code=...&status=...
func (h *InviteCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, _ := IdentityFrom(r.Context())

	resp, err := h.issuer.List(r.Context(), service.ListInviteCodesRequest{
		ClinicCode: q.Get("clinic_code"),
		IssuerID:   id.UserID,
		Status:     q.Get("status"),
		SortAsc:    q.Get("sort") == "asc",
		Page:       parseInt(q.Get("page"), 1),
		Size:       parseInt(q.Get("size"), 0),
	})
	if err != nil {
		h.logFailure(r, "invite code listing failed", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Deactivate handles PUT /api/v1/invite-codes/{id}/deactivate. Idempotent.
func (h *InviteCodeHandler) Deactivate(w http.ResponseWriter, r *http.Request, codeID string) {
	id, _ := IdentityFrom(r.Context())
	if err := h.issuer.Deactivate(r.Context(), codeID, id.UserID); err != nil {
		h.logFailure(r, "invite code deactivation failed", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             codeID,
		"active":         false,
		"deactivated_at": time.Now().UTC(),
	})
}

func (h *InviteCodeHandler) logFailure(r *http.Request, msg string, err error) {
	code := service.CodeOf(err)
	fields := []zap.Field{
		zap.String("error_code", string(code)),
		zap.String("ip_address", clientIP(r)),
		zap.String("user_agent", r.UserAgent()),
	}
	switch code {
	case service.CodeStoreError, service.CodeSystemError, service.CodeGenerationExhausted:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	default:
		h.logger.Info(msg, fields...)
	}
}
