package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/blob"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/notify"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// maxUploadBytes caps multipart evidence uploads (selfies, videos, audit
// attachments).
const maxUploadBytes = 32 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	blobs    blob.Store
	scoring  *scoring.Service
	registry *rules.Registry
	notifier *notify.Notifier
	version  string

	statsTTL     time.Duration
	topRiskLimit int
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, blobs blob.Store, svc *scoring.Service, registry *rules.Registry, notifier *notify.Notifier, version string, topRiskLimit int) *Handler {
	if topRiskLimit <= 0 {
		topRiskLimit = 10
	}
	return &Handler{
		repo:         repo,
		cache:        cache,
		blobs:        blobs,
		scoring:      svc,
		registry:     registry,
		notifier:     notifier,
		version:      version,
		statsTTL:     30 * time.Second,
		topRiskLimit: topRiskLimit,
	}
}

// TransactionRequest is the request body for POST /transactions.
type TransactionRequest struct {
	TransactionType string   `json:"transactionType"`
	Amount          float64  `json:"amount"`
	CustomerName    string   `json:"customerName"`
	CustomerAadhaar string   `json:"customerAadhaar"`
	AccountNumber   string   `json:"accountNumber,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	DeviceID        string   `json:"deviceId,omitempty"`
}

// CreateTransaction handles POST /transactions. The transaction is
// committed first; the fraud score recompute runs afterwards as a
// best-effort follow-up and can never fail this request.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.TransactionType == "" {
		writeError(w, http.StatusBadRequest, "transactionType is required")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.CustomerName == "" || req.CustomerAadhaar == "" {
		writeError(w, http.StatusBadRequest, "customerName and customerAadhaar are required")
		return
	}

	now := time.Now().UTC()
	tx := &domain.Transaction{
		ID:              uuid.New().String(),
		AgentUserID:     userID,
		Type:            req.TransactionType,
		Amount:          req.Amount,
		CustomerName:    req.CustomerName,
		CustomerAadhaar: req.CustomerAadhaar,
		AccountNumber:   req.AccountNumber,
		DeviceID:        req.DeviceID,
		IPAddress:       clientIP(r),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Status:          "completed",
		TransactionDate: now,
		CreatedAt:       now,
	}

	if err := h.repo.SaveTransaction(ctx, tx); err != nil {
		slog.Error("failed to save transaction", "agent_user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	h.scoring.Trigger(ctx, userID, scoring.TriggerTransaction)
	h.invalidateStats(r)

	writeJSON(w, http.StatusCreated, tx)
}

// CreateCheckIn handles POST /check-ins (multipart). Selfie and video are
// optional file parts; coordinates, address, and device are form fields.
// Verification of the selfie happens upstream, so the recorded status is
// whatever the verification service reported (default pending).
func (h *Handler) CreateCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	lat, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "latitude is required and must be numeric")
		return
	}
	lng, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "longitude is required and must be numeric")
		return
	}

	address := r.FormValue("address")
	deviceID := r.FormValue("deviceId")
	if address == "" || deviceID == "" {
		writeError(w, http.StatusBadRequest, "address and deviceId are required")
		return
	}

	status := r.FormValue("status")
	if status == "" {
		status = domain.CheckInPending
	}
	if status != domain.CheckInVerified && status != domain.CheckInFailed && status != domain.CheckInPending {
		writeError(w, http.StatusBadRequest, "status must be verified, failed, or pending")
		return
	}

	now := time.Now().UTC()
	checkIn := &domain.CheckIn{
		ID:          uuid.New().String(),
		UserID:      userID,
		Status:      status,
		Latitude:    lat,
		Longitude:   lng,
		Address:     address,
		DeviceID:    deviceID,
		CheckInDate: now,
	}

	selfieURL, err := h.storeUpload(r, "selfie", "check-ins/"+checkIn.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store selfie")
		return
	}
	checkIn.SelfieURL = selfieURL

	videoURL, err := h.storeUpload(r, "video", "check-ins/"+checkIn.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store video")
		return
	}
	checkIn.VideoURL = videoURL

	if err := h.repo.SaveCheckIn(ctx, checkIn); err != nil {
		slog.Error("failed to save check-in", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save check-in")
		return
	}

	// Every check-in extends the location audit trail.
	logEntry := &domain.LocationLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		LoggedAt:  now,
	}
	if err := h.repo.SaveLocationLog(ctx, logEntry); err != nil {
		slog.Warn("failed to save location log", "user_id", userID, "error", err)
	}

	h.scoring.Trigger(ctx, userID, scoring.TriggerCheckIn)
	h.invalidateStats(r)

	writeJSON(w, http.StatusCreated, checkIn)
}

// CreateAudit handles POST /audits (multipart). The auditor records an
// audit of an agent; completion triggers a recompute of the audited
// agent's score, not the auditor's.
func (h *Handler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditorID := GetUserID(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	agentID := r.FormValue("agentId")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	// The audited user must be an agent; auditing anyone else is a
	// request error, not a pipeline integrity warning.
	if _, err := h.repo.GetAgentProfileByUser(ctx, agentID); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			writeError(w, http.StatusBadRequest, "agentId does not refer to an agent")
			return
		}
		slog.Error("failed to resolve audited agent", "agent_user_id", agentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve agent")
		return
	}

	status := r.FormValue("status")
	if status == "" {
		status = "completed"
	}

	audit := &domain.Audit{
		ID:            uuid.New().String(),
		AuditorUserID: auditorID,
		AgentUserID:   agentID,
		Status:        status,
		Findings:      r.FormValue("findings"),
		CreatedAt:     time.Now().UTC(),
	}

	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["evidence"] {
			url, err := h.storeFile(r, fh, "audits/"+audit.ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to store evidence file")
				return
			}
			audit.EvidenceURLs = append(audit.EvidenceURLs, url)
		}
	}

	if err := h.repo.SaveAudit(ctx, audit); err != nil {
		slog.Error("failed to save audit", "agent_user_id", agentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save audit")
		return
	}

	// The audit workflow owns its notification; the scoring pipeline
	// never dispatches any.
	if h.notifier != nil {
		if _, err := h.notifier.Notify(ctx, agentID,
			"Audit completed",
			fmt.Sprintf("An audit of your CSP was completed with status %q.", status),
			"audit", "/audits/"+audit.ID,
		); err != nil {
			slog.Warn("failed to record audit notification", "agent_user_id", agentID, "error", err)
		}
	}

	h.scoring.Trigger(ctx, agentID, scoring.TriggerAudit)
	h.invalidateStats(r)

	writeJSON(w, http.StatusCreated, audit)
}

// ProfileResponse is the response for GET /users/profile.
type ProfileResponse struct {
	User         *domain.User         `json:"user,omitempty"`
	AgentProfile *domain.AgentProfile `json:"agentProfile,omitempty"`
}

// GetProfile handles GET /users/profile. Agents see their own fraud score
// and risk badge; other roles just get their identity record.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	var resp ProfileResponse

	user, err := h.repo.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("failed to load user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	resp.User = user

	profile, err := h.repo.GetAgentProfileByUser(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		slog.Error("failed to load agent profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	resp.AgentProfile = profile

	if resp.User == nil && resp.AgentProfile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListNotifications handles GET /notifications for the caller.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	notifications, err := h.repo.ListNotificationsByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to list notifications", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

const statsCacheKey = "admin:stats"

// StatsResponse is the response for GET /admin/stats.
type StatsResponse struct {
	TotalAgents int                     `json:"totalAgents"`
	ByRiskLevel map[domain.RiskLevel]int `json:"byRiskLevel"`
	TopHighRisk []*domain.AgentProfile  `json:"topHighRisk"`
}

// AdminStats handles GET /admin/stats. Served from cache for a short
// window; any scoring trigger invalidates.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if data, err := h.cache.Get(ctx, statsCacheKey); err == nil && data != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}
	}

	profiles, err := h.repo.ListAgentScores(ctx)
	if err != nil {
		slog.Error("failed to list agent scores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp := StatsResponse{
		TotalAgents: len(profiles),
		ByRiskLevel: map[domain.RiskLevel]int{
			domain.RiskLow:    0,
			domain.RiskMedium: 0,
			domain.RiskHigh:   0,
		},
	}
	for _, p := range profiles {
		resp.ByRiskLevel[p.RiskLevel]++
	}
	if len(profiles) > h.topRiskLimit {
		resp.TopHighRisk = profiles[:h.topRiskLimit]
	} else {
		resp.TopHighRisk = profiles
	}

	data, _ := json.Marshal(resp)
	if h.cache != nil {
		if err := h.cache.Set(ctx, statsCacheKey, data, h.statsTTL); err != nil {
			slog.Warn("failed to cache admin stats", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// AgentScores handles GET /admin/agent-scores: every agent profile ordered
// by fraud score descending.
func (h *Handler) AgentScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profiles, err := h.repo.ListAgentScores(ctx)
	if err != nil {
		slog.Error("failed to list agent scores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list agent scores")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agents": profiles,
		"count":  len(profiles),
	})
}

// ListRules handles GET /admin/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleList, err := h.registry.List(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": ruleList,
		"count": len(ruleList),
	})
}

// UpdateRule handles PATCH /admin/rules/{name}. Changes take effect on the
// next scoring run; no retroactive recompute.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	if name == "" {
		writeError(w, http.StatusBadRequest, "rule name is required")
		return
	}

	var upd domain.RuleUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if upd.ScoreImpact == nil && upd.Status == nil && upd.Expression == nil {
		writeError(w, http.StatusBadRequest, "at least one of scoreImpact, status, expression is required")
		return
	}

	rule, err := h.registry.Update(ctx, name, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "rule not found")
		case errors.Is(err, repository.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// storeUpload stores a single optional named file part, returning "" when
// the part is absent.
func (h *Handler) storeUpload(r *http.Request, field, prefix string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	key := prefix + "/" + field + "-" + header.Filename
	return h.blobs.Put(r.Context(), key, header.Header.Get("Content-Type"), file)
}

// storeFile stores one part from a multi-file field.
func (h *Handler) storeFile(r *http.Request, fh *multipart.FileHeader, prefix string) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	key := prefix + "/" + fh.Filename
	return h.blobs.Put(r.Context(), key, fh.Header.Get("Content-Type"), file)
}

func (h *Handler) invalidateStats(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), statsCacheKey); err != nil {
		slog.Warn("failed to invalidate stats cache", "error", err)
	}
}

// clientIP returns the request IP with any port stripped. RealIP
// middleware has already resolved forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
