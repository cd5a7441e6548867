package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes подключает маршруты API; статические пути объявлены раньше /{id}
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.NotFound(NotFoundHandler)
	r.MethodNotAllowed(MethodNotAllowedHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// поставщики
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.GetVendorsHandler)
			r.Post("/", h.CreateVendorHandler)
			r.Get("/stats", h.GetVendorStatsHandler)
			r.Get("/{id}", h.GetVendorHandler)
			r.Put("/{id}", h.UpdateVendorHandler)
			r.Delete("/{id}", h.DeleteVendorHandler)
		})

		// RFP
		r.Route("/rfps", func(r chi.Router) {
			r.Get("/", h.GetRFPsHandler)
			r.Post("/", h.CreateRFPHandler)
			r.Get("/stats", h.GetRFPStatsHandler)
			r.Post("/ai-create", h.CreateRFPFromTextHandler)
			r.Post("/ai-suggestions", h.GetAISuggestionsHandler)
			r.Get("/{id}", h.GetRFPHandler)
			r.Put("/{id}", h.UpdateRFPHandler)
			r.Delete("/{id}", h.DeleteRFPHandler)
			r.Post("/{id}/send", h.SendRFPHandler)
		})

		// предложения
		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", h.GetProposalsHandler)
			r.Post("/", h.CreateProposalHandler)
			r.Get("/stats", h.GetProposalStatsHandler)
			r.Get("/rfp/{rfpId}", h.GetProposalsByRFPHandler)
			r.Post("/compare/{rfpId}", h.CompareProposalsHandler)
			r.Get("/{id}", h.GetProposalHandler)
			r.Put("/{id}", h.UpdateProposalHandler)
			r.Delete("/{id}", h.DeleteProposalHandler)
			r.Patch("/{id}/status", h.UpdateProposalStatusHandler)
			r.Post("/{id}/analyze", h.AnalyzeProposalHandler)
			r.Post("/{id}/notes", h.AddNoteHandler)
		})
	})
}
