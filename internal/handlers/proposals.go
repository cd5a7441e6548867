package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/internal/ai"
	"github.com/Shreyansh0843/rfp-system/internal/notify"
	"github.com/Shreyansh0843/rfp-system/models"
)

// GetProposalsHandler GET /api/proposals
func (h *Handler) GetProposalsHandler(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)
	rfpID, ok := parseOptionalID(w, r, "rfpId", "RFP")
	if !ok {
		return
	}
	vendorID, ok := parseOptionalID(w, r, "vendorId", "vendor")
	if !ok {
		return
	}
	filter := models.ProposalFilter{
		RFPID:    rfpID,
		VendorID: vendorID,
		Status:   r.URL.Query().Get("status"),
		Sort:     parseSort(r),
	}

	proposals, total, err := h.Store.ListProposals(r.Context(), filter, page)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	respondList(w, proposals, page, total)
}

// GetProposalsByRFPHandler GET /api/proposals/rfp/{rfpId}
func (h *Handler) GetProposalsByRFPHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, ok := parseID(w, r, "rfpId", "RFP")
	if !ok {
		return
	}
	proposals, err := h.Store.ListProposalsByRFP(r.Context(), rfpID)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	respondOK(w, http.StatusOK, proposals, "")
}

func (h *Handler) GetProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	proposal, err := h.Store.GetProposal(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	respondOK(w, http.StatusOK, proposal, "")
}

// proposalRequest: идентификаторы принимаются строками, чтобы вернуть ошибку поля
type proposalRequest struct {
	RFPID    string `json:"rfpId"`
	VendorID string `json:"vendorId"`
	models.Proposal
}

func parseRefID(raw, field, label string) (uuid.UUID, *models.FieldError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, &models.FieldError{Field: field, Message: label + " is required"}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &models.FieldError{Field: field, Message: "Invalid " + label}
	}
	return id, nil
}

// CreateProposalHandler POST /api/proposals
func (h *Handler) CreateProposalHandler(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := req.Proposal

	var errs []models.FieldError
	rfpID, ferr := parseRefID(req.RFPID, "rfpId", "RFP ID")
	if ferr != nil {
		errs = append(errs, *ferr)
	}
	vendorID, ferr := parseRefID(req.VendorID, "vendorId", "Vendor ID")
	if ferr != nil {
		errs = append(errs, *ferr)
	}
	p.RFPID, p.VendorID = rfpID, vendorID
	p.Normalize()
	for _, e := range p.Validate() {
		if e.Field != "rfpId" && e.Field != "vendorId" {
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx := r.Context()
	rfp, err := h.Store.GetRFP(ctx, rfpID)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	if !rfp.Status.AcceptsProposals() {
		respondError(w, http.StatusBadRequest, "This RFP is no longer accepting proposals")
		return
	}
	vendor, err := h.Store.GetVendor(ctx, vendorID)
	if err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	exists, err := h.Store.ProposalExists(ctx, rfpID, vendorID)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	if exists {
		respondError(w, http.StatusBadRequest, "Vendor has already submitted a proposal for this RFP")
		return
	}

	// анализ, оценки и заметки появляются только через свои операции
	p.ID = uuid.Nil
	p.RFP, p.Vendor = nil, nil
	p.Scores, p.AIAnalysis = nil, nil
	p.EvaluatorNotes = models.EvaluatorNotes{}
	p.SubmittedAt = h.now().UTC()

	if err := h.Store.SubmitProposal(ctx, &p); err != nil {
		h.storageError(w, err, "RFP or vendor")
		return
	}
	p.RFP = &models.RFPRef{ID: rfp.ID, Title: rfp.Title, Deadline: rfp.Deadline, Status: rfp.Status}
	p.Vendor = vendor.Ref()

	confirmed := p
	h.Notifier.Submit(notify.Job{
		Kind: notify.KindProposalConfirmation,
		Ref:  p.ID.String(),
		Run: func(ctx context.Context) error {
			return h.Mail.SendConfirmation(ctx, vendor, rfp, &confirmed)
		},
	})

	h.Log.Info("proposal submitted",
		zap.String("proposal_id", p.ID.String()),
		zap.String("rfp_id", rfpID.String()),
		zap.String("vendor", vendor.Name),
		zap.Bool("invited", rfp.RosterEntryFor(vendorID) != nil),
	)
	respondOK(w, http.StatusCreated, p, "Proposal submitted successfully")
}

// UpdateProposalHandler PUT /api/proposals/{id}. Привязка к RFP и поставщику,
// анализ и заметки не меняются.
func (h *Handler) UpdateProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	p, err := h.Store.GetProposal(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	prev := *p
	p.RFP, p.Vendor = nil, nil
	p.Scores, p.AIAnalysis = nil, nil
	p.EvaluatorNotes = nil
	if !decodeJSON(w, r, p) {
		return
	}
	p.ID, p.RFPID, p.VendorID = id, prev.RFPID, prev.VendorID
	p.RFP, p.Vendor = prev.RFP, prev.Vendor
	p.Scores, p.AIAnalysis = prev.Scores, prev.AIAnalysis
	p.EvaluatorNotes = prev.EvaluatorNotes
	p.SubmittedAt, p.CreatedAt = prev.SubmittedAt, prev.CreatedAt

	p.Normalize()
	if errs := p.Validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	if err := h.Store.UpdateProposal(r.Context(), p); err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	h.Log.Info("proposal updated", zap.String("proposal_id", id.String()))
	respondOK(w, http.StatusOK, p, "Proposal updated successfully")
}

type statusRequest struct {
	Status models.ProposalStatus `json:"status"`
}

// UpdateProposalStatusHandler PATCH /api/proposals/{id}/status
func (h *Handler) UpdateProposalStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		names := make([]string, len(models.ProposalStatuses))
		for i, s := range models.ProposalStatuses {
			names[i] = string(s)
		}
		respondError(w, http.StatusBadRequest, "Invalid status. Must be one of: "+strings.Join(names, ", "))
		return
	}

	proposal, err := h.Store.UpdateProposalStatus(r.Context(), id, req.Status)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	h.Log.Info("proposal status updated", zap.String("proposal_id", id.String()), zap.String("status", string(req.Status)))
	respondOK(w, http.StatusOK, proposal, fmt.Sprintf("Proposal status updated to %s", req.Status))
}

func (h *Handler) DeleteProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	if err := h.Store.DeleteProposal(r.Context(), id); err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	h.Log.Info("proposal deleted", zap.String("proposal_id", id.String()))
	respondOK(w, http.StatusOK, nil, "Proposal deleted successfully")
}

type analyzeResult struct {
	Proposal *models.Proposal `json:"proposal"`
	Analysis *ai.Analysis     `json:"analysis"`
}

// AnalyzeProposalHandler POST /api/proposals/{id}/analyze: результат перезаписывает прежний анализ
func (h *Handler) AnalyzeProposalHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	ctx := r.Context()
	p, err := h.Store.GetProposal(ctx, id)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	rfp, err := h.Store.GetRFP(ctx, p.RFPID)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}

	analysis, err := h.AI.AnalyzeProposal(ctx, p, rfp.Requirements)
	if err != nil {
		aiError(w, err)
		return
	}
	stored := analysis.Stored(h.now())
	scores := analysis.Scores
	if err := h.Store.SaveProposalAnalysis(ctx, id, stored, scores); err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	p.AIAnalysis = &stored
	p.Scores = &scores

	h.Log.Info("proposal analyzed", zap.String("proposal_id", id.String()), zap.Float64("overall", scores.Overall))
	respondOK(w, http.StatusOK, analyzeResult{Proposal: p, Analysis: analysis}, "")
}

type compareRequest struct {
	ProposalIDs []string `json:"proposalIds"`
}

type rfpBrief struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type compareResult struct {
	RFP        rfpBrief                `json:"rfp"`
	Proposals  []models.ProposalDigest `json:"proposals"`
	Comparison *ai.Comparison          `json:"comparison"`
}

// CompareProposalsHandler POST /api/proposals/compare/{rfpId}. Результат не сохраняется.
func (h *Handler) CompareProposalsHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, ok := parseID(w, r, "rfpId", "RFP")
	if !ok {
		return
	}
	var req compareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.ProposalIDs))
	for i, raw := range req.ProposalIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			respondValidation(w, []models.FieldError{{
				Field:   fmt.Sprintf("proposalIds[%d]", i),
				Message: "Invalid proposal ID",
			}})
			return
		}
		ids = append(ids, id)
	}

	ctx := r.Context()
	rfp, err := h.Store.GetRFP(ctx, rfpID)
	if err != nil {
		h.storageError(w, err, "RFP")
		return
	}
	proposals, err := h.Store.ProposalsForComparison(ctx, rfpID, ids)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	if len(proposals) < 2 {
		respondError(w, http.StatusBadRequest, "At least 2 proposals are required for comparison")
		return
	}

	comparison, err := h.AI.CompareProposals(ctx, proposals, rfp.Requirements)
	if err != nil {
		aiError(w, err)
		return
	}

	digests := make([]models.ProposalDigest, len(proposals))
	for i := range proposals {
		digests[i] = proposals[i].Digest()
	}
	h.Log.Info("proposals compared", zap.String("rfp_id", rfpID.String()), zap.Int("count", len(proposals)))
	respondOK(w, http.StatusOK, compareResult{
		RFP:        rfpBrief{ID: rfp.ID, Title: rfp.Title},
		Proposals:  digests,
		Comparison: comparison,
	}, "")
}

// AddNoteHandler POST /api/proposals/{id}/notes: заметки только дописываются
func (h *Handler) AddNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	var note models.EvaluatorNote
	if !decodeJSON(w, r, &note) {
		return
	}
	note.Normalize()
	if errs := note.Validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}
	note.CreatedAt = h.now().UTC()

	proposal, err := h.Store.AddEvaluatorNote(r.Context(), id, note)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	h.Log.Info("evaluator note added", zap.String("proposal_id", id.String()), zap.String("by", note.CreatedBy))
	respondOK(w, http.StatusCreated, proposal, "Note added successfully")
}

// GetProposalStatsHandler GET /api/proposals/stats?rfpId=
func (h *Handler) GetProposalStatsHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, ok := parseOptionalID(w, r, "rfpId", "RFP")
	if !ok {
		return
	}
	stats, err := h.Store.ProposalStats(r.Context(), rfpID)
	if err != nil {
		h.storageError(w, err, "Proposal")
		return
	}
	respondOK(w, http.StatusOK, stats, "")
}
