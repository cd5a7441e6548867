package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/models"
)

// GetVendorsHandler GET /api/vendors
func (h *Handler) GetVendorsHandler(w http.ResponseWriter, r *http.Request) {
	page := parsePaginationParams(r)
	q := r.URL.Query()
	filter := models.VendorFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Sort:     parseSort(r),
	}

	vendors, total, err := h.Store.ListVendors(r.Context(), filter, page)
	if err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	respondList(w, vendors, page, total)
}

func (h *Handler) GetVendorHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "vendor")
	if !ok {
		return
	}
	vendor, err := h.Store.GetVendor(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	respondOK(w, http.StatusOK, vendor, "")
}

// CreateVendorHandler POST /api/vendors
func (h *Handler) CreateVendorHandler(w http.ResponseWriter, r *http.Request) {
	var vendor models.Vendor
	if !decodeJSON(w, r, &vendor) {
		return
	}
	vendor.ID = uuid.Nil
	vendor.Normalize()
	if errs := vendor.Validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	if err := h.Store.CreateVendor(r.Context(), &vendor); err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	h.Log.Info("vendor created", zap.String("vendor_id", vendor.ID.String()), zap.String("email", vendor.Email))
	respondOK(w, http.StatusCreated, vendor, "Vendor created successfully")
}

// UpdateVendorHandler PUT /api/vendors/{id}: переданные поля накладываются на сохранённую запись
func (h *Handler) UpdateVendorHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "vendor")
	if !ok {
		return
	}
	vendor, err := h.Store.GetVendor(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	createdAt := vendor.CreatedAt
	if !decodeJSON(w, r, vendor) {
		return
	}
	vendor.ID = id
	vendor.CreatedAt = createdAt
	vendor.Normalize()
	if errs := vendor.Validate(); len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	if err := h.Store.UpdateVendor(r.Context(), vendor); err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	h.Log.Info("vendor updated", zap.String("vendor_id", id.String()))
	respondOK(w, http.StatusOK, vendor, "Vendor updated successfully")
}

func (h *Handler) DeleteVendorHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "vendor")
	if !ok {
		return
	}
	if err := h.Store.DeleteVendor(r.Context(), id); err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	h.Log.Info("vendor deleted", zap.String("vendor_id", id.String()))
	respondOK(w, http.StatusOK, nil, "Vendor deleted successfully")
}

func (h *Handler) GetVendorStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.VendorStats(r.Context())
	if err != nil {
		h.storageError(w, err, "Vendor")
		return
	}
	respondOK(w, http.StatusOK, stats, "")
}
