package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/domain"
	"github.com/jinhyuck8504/obdoc-sub000/internal/service"
)

// ClinicCodeHandler exposes clinic registration code issuance. Admin only.
type ClinicCodeHandler struct {
	issuer service.ClinicCodeService
	logger *zap.Logger
}

func NewClinicCodeHandler(issuer service.ClinicCodeService, logger *zap.Logger) *ClinicCodeHandler {
	return &ClinicCodeHandler{issuer: issuer, logger: logger}
}

type createClinicRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Region  string `json:"region"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Create handles POST /api/v1/clinic-codes.
func (h *ClinicCodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClinicRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "invalid request body",
			ErrorCode: string(service.CodeInvalidInput),
		})
		return
	}

	id, _ := IdentityFrom(r.Context())
	clinic, err := h.issuer.IssueClinicCode(r.Context(), service.IssueClinicCodeRequest{
		Name:      req.Name,
		Type:      domain.ClinicType(req.Type),
		Region:    domain.Region(req.Region),
		Address:   req.Address,
		Phone:     req.Phone,
		ActorID:   id.UserID,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		code := service.CodeOf(err)
		fields := []zap.Field{
			zap.String("error_code", string(code)),
			zap.String("ip_address", clientIP(r)),
		}
		switch code {
		case service.CodeStoreError, service.CodeSystemError, service.CodeGenerationExhausted:
			h.logger.Error("clinic code issuance failed", append(fields, zap.Error(err))...)
		default:
			h.logger.Info("clinic code issuance failed", fields...)
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, clinic)
}

// List handles GET /api/v1/clinic-codes?region=...&type=...&active=...&search=...
func (h *ClinicCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var active *bool
	if raw := q.Get("active"); raw != "" {
		v := raw == "true"
		active = &v
	}

	resp, err := h.issuer.ListClinics(r.Context(), service.ListClinicsRequest{
		Region: q.Get("region"),
		Type:   q.Get("type"),
		Active: active,
		Search: q.Get("search"),
		Page:   parseInt(q.Get("page"), 1),
		Size:   parseInt(q.Get("size"), 0),
	})
	if err != nil {
		h.logger.Info("clinic listing failed",
			zap.String("error_code", string(service.CodeOf(err))),
			zap.String("ip_address", clientIP(r)),
		)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Deactivate handles PUT /api/v1/clinic-codes/{code}/deactivate.
func (h *ClinicCodeHandler) Deactivate(w http.ResponseWriter, r *http.Request, clinicCode string) {
	id, _ := IdentityFrom(r.Context())
	if err := h.issuer.DeactivateClinic(r.Context(), clinicCode, id.UserID); err != nil {
		h.logger.Info("clinic deactivation failed",
			zap.String("error_code", string(service.CodeOf(err))),
			zap.String("ip_address", clientIP(r)),
		)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": clinicCode, "active": false})
}
