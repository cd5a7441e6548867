package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/models"
)

// GetRFPsHandler GET /api/rfps
func (h *Handler) GetRFPsHandler(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)
	q := r.URL.Query()
	filter := models.RFPFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Sort:     parseSort(r),
	}

	rfps, total, err := h.Store.ListRFPs(r.Context(), filter, page)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	respondList(w, rfps, page, total)
}

func (h *Handler) GetRFPHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "RFP")
	if !ok {
		return
	}
	rfp, err := h.Store.GetRFP(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	respondOK(w, http.StatusOK, rfp, "")
}

// CreateRFPHandler POST /api/rfps
func (h *Handler) CreateRFPHandler(w http.ResponseWriter, r *http.Request) {
	var rfp models.RFP
	if !decodeJSON(w, r, &rfp) {
		return
	}
	// приглашённые и контент модели задаются только своими операциями
	rfp.ID = uuid.Nil
	rfp.Vendors = nil
	rfp.AIGeneratedContent = nil
	rfp.ProposalCount = 0
	rfp.Normalize()
	if errs := rfp.Validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	if err := h.Store.CreateRFP(r.Context(), &rfp); err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	h.Log.Info("rfp created", zap.String("rfp_id", rfp.ID.String()), zap.String("title", rfp.Title))
	respondOK(w, http.StatusCreated, rfp, "RFP created successfully")
}

type aiCreateRequest struct {
	Input    string      `json:"input"`
	Deadline models.Date `json:"deadline"`
}

type aiSuggestions struct {
	VendorCategories []string `json:"vendorCategories"`
	RiskFactors      []string `json:"riskFactors"`
}

// CreateRFPFromTextHandler POST /api/rfps/ai-create
func (h *Handler) CreateRFPFromTextHandler(w http.ResponseWriter, r *http.Request) {
	var req aiCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		respondError(w, http.StatusBadRequest, "Natural language input is required")
		return
	}
	if req.Deadline.Malformed() {
		respondValidation(w, []models.FieldError{{Field: "deadline", Message: "Invalid date format"}})
		return
	}

	parsed, err := h.AI.ParseRFP(r.Context(), req.Input)
	if err != nil {
		aiError(w, err)
		return
	}
	rfp := parsed.ToRFP(req.Deadline, h.now())
	if errs := rfp.Validate(); len(errs) > 0 {
		h.Log.Warn("model produced invalid rfp", zap.Any("errors", errs))
		writeJSON(w, http.StatusBadGateway, envelope{
			Success: false,
			Error:   "AI response did not produce a valid RFP",
			Errors:  errs,
		})
		return
	}

	if err := h.Store.CreateRFP(r.Context(), rfp); err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	h.Log.Info("rfp created from natural language", zap.String("rfp_id", rfp.ID.String()), zap.String("title", rfp.Title))
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Data:    rfp,
		AISuggestions: aiSuggestions{
			VendorCategories: orEmpty(parsed.SuggestedVendorCategories),
			RiskFactors:      orEmpty(parsed.RiskFactors),
		},
		Message: "RFP created successfully from natural language",
	})
}

// UpdateRFPHandler PUT /api/rfps/{id}. Статус меняется только вперёд по жизненному циклу.
func (h *Handler) UpdateRFPHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "RFP")
	if !ok {
		return
	}
	rfp, err := h.Store.GetRFP(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	prev := *rfp
	// не даём телу запроса писать в общие с prev срезы и указатели
	rfp.Vendors = nil
	rfp.AIGeneratedContent = nil
	if !decodeJSON(w, r, rfp) {
		return
	}
	rfp.ID = id
	rfp.CreatedAt = prev.CreatedAt
	rfp.Vendors = prev.Vendors
	rfp.ProposalCount = prev.ProposalCount
	rfp.AIGeneratedContent = prev.AIGeneratedContent

	if !prev.Status.CanTransitionTo(rfp.Status) {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Cannot change RFP status from %s to %s", prev.Status, rfp.Status))
		return
	}
	rfp.Normalize()
	if errs := rfp.Validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	if err := h.Store.UpdateRFP(r.Context(), rfp, prev.Status); err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	h.Log.Info("rfp updated", zap.String("rfp_id", id.String()), zap.String("status", string(rfp.Status)))
	respondOK(w, http.StatusOK, rfp, "RFP updated successfully")
}

func (h *Handler) DeleteRFPHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "RFP")
	if !ok {
		return
	}
	if err := h.Store.DeleteRFP(r.Context(), id); err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	h.Log.Info("rfp deleted", zap.String("rfp_id", id.String()))
	respondOK(w, http.StatusOK, nil, "RFP deleted successfully")
}

type sendRequest struct {
	VendorIDs     []string `json:"vendorIds"`
	CustomMessage string   `json:"customMessage"`
}

type sentVendor struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type failedVendor struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Error string    `json:"error"`
}

type sendResult struct {
	Sent   []sentVendor   `json:"sent"`
	Failed []failedVendor `json:"failed"`
}

// SendRFPHandler POST /api/rfps/{id}/send. Письма уходят по одному; неудача
// у одного поставщика не останавливает остальных.
func (h *Handler) SendRFPHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "RFP")
	if !ok {
		return
	}
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vendorIDs, errs := parseVendorIDs(req.VendorIDs)
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx := r.Context()
	rfp, err := h.Store.GetRFP(ctx, id)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	if rfp.Status.IsTerminal() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Cannot send an RFP that is %s", rfp.Status))
		return
	}

	vendors, err := h.Store.GetActiveVendors(ctx, vendorIDs)
	if err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	if len(vendors) == 0 {
		respondError(w, http.StatusBadRequest, "No active vendors found")
		return
	}

	result := sendResult{Sent: []sentVendor{}, Failed: []failedVendor{}}
	delivered := make([]uuid.UUID, 0, len(vendors))
	for i := range vendors {
		v := &vendors[i]
		if err := h.Mail.SendInvitation(ctx, v, rfp, req.CustomMessage); err != nil {
			h.Log.Warn("invitation failed", zap.String("rfp_id", id.String()), zap.String("vendor_id", v.ID.String()), zap.Error(err))
			result.Failed = append(result.Failed, failedVendor{ID: v.ID, Email: v.Email, Error: err.Error()})
			continue
		}
		result.Sent = append(result.Sent, sentVendor{ID: v.ID, Email: v.Email})
		delivered = append(delivered, v.ID)
	}

	if len(delivered) > 0 {
		if err := h.Store.MarkRFPSent(ctx, id, delivered, h.now().UTC()); err != nil {
			h.storageError(w, err, "RFP")
			return
		}
	}

	h.Log.Info("rfp sent", zap.String("rfp_id", id.String()),
		zap.Int("sent", len(result.Sent)), zap.Int("failed", len(result.Failed)))

	msg := fmt.Sprintf("RFP sent to %d vendor(s)", len(result.Sent))
	if len(result.Failed) > 0 {
		msg += fmt.Sprintf(", %d failed", len(result.Failed))
	}
	respondOK(w, http.StatusOK, result, msg)
}

func parseVendorIDs(raw []string) ([]uuid.UUID, []models.FieldError) {
	if len(raw) == 0 {
		return nil, []models.FieldError{{Field: "vendorIds", Message: "At least one vendor is required"}}
	}
	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	var errs []models.FieldError
	for i, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			errs = append(errs, models.FieldError{Field: fmt.Sprintf("vendorIds[%d]", i), Message: "Invalid vendor ID"})
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, errs
}

type suggestionsRequest struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// GetAISuggestionsHandler POST /api/rfps/ai-suggestions, ничего не сохраняет
func (h *Handler) GetAISuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Category) == "" || strings.TrimSpace(req.Description) == "" {
		respondError(w, http.StatusBadRequest, "Category and description are required")
		return
	}
	suggestions, err := h.AI.Suggest(r.Context(), req.Category, req.Description)
	if err != nil {
		aiError(w, err)
		return
	}
	respondOK(w, http.StatusOK, suggestions, "")
}

func (h *Handler) GetRFPStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.RFPStats(r.Context())
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	respondOK(w, http.StatusOK, stats, "")
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
