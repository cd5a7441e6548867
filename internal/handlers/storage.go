package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Shreyansh0843/rfp-system/internal/ai"
	"github.com/Shreyansh0843/rfp-system/internal/notify"
	"github.com/Shreyansh0843/rfp-system/models"
)

type StorageInterface interface {
	Ping(ctx context.Context) error

	ListVendors(ctx context.Context, f models.VendorFilter, page models.Page) ([]models.Vendor, int, error)
	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	GetActiveVendors(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error)
	CreateVendor(ctx context.Context, v *models.Vendor) error
	UpdateVendor(ctx context.Context, v *models.Vendor) error
	DeleteVendor(ctx context.Context, id uuid.UUID) error
	VendorStats(ctx context.Context) (*models.VendorStats, error)

	ListRFPs(ctx context.Context, f models.RFPFilter, page models.Page) ([]models.RFP, int, error)
	GetRFP(ctx context.Context, id uuid.UUID) (*models.RFP, error)
	CreateRFP(ctx context.Context, r *models.RFP) error
	UpdateRFP(ctx context.Context, r *models.RFP, prev models.RFPStatus) error
	DeleteRFP(ctx context.Context, id uuid.UUID) error
	MarkRFPSent(ctx context.Context, rfpID uuid.UUID, vendorIDs []uuid.UUID, sentAt time.Time) error
	RFPStats(ctx context.Context) (*models.RFPStats, error)

	ListProposals(ctx context.Context, f models.ProposalFilter, page models.Page) ([]models.Proposal, int, error)
	ListProposalsByRFP(ctx context.Context, rfpID uuid.UUID) ([]models.Proposal, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ProposalExists(ctx context.Context, rfpID, vendorID uuid.UUID) (bool, error)
	SubmitProposal(ctx context.Context, p *models.Proposal) error
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	UpdateProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) (*models.Proposal, error)
	SaveProposalAnalysis(ctx context.Context, id uuid.UUID, analysis models.AIAnalysis, scores models.Scores) error
	AddEvaluatorNote(ctx context.Context, id uuid.UUID, note models.EvaluatorNote) (*models.Proposal, error)
	DeleteProposal(ctx context.Context, id uuid.UUID) error
	ProposalsForComparison(ctx context.Context, rfpID uuid.UUID, ids []uuid.UUID) ([]models.Proposal, error)
	ProposalStats(ctx context.Context, rfpID *uuid.UUID) (*models.ProposalStats, error)
}

// Assistant языковая модель: разбор текста, анализ и сравнение предложений
type Assistant interface {
	ParseRFP(ctx context.Context, text string) (*ai.ParsedRFP, error)
	AnalyzeProposal(ctx context.Context, p *models.Proposal, requirements models.Requirements) (*ai.Analysis, error)
	CompareProposals(ctx context.Context, proposals []models.Proposal, requirements models.Requirements) (*ai.Comparison, error)
	Suggest(ctx context.Context, category, description string) (*ai.Suggestions, error)
}

type Mailer interface {
	SendInvitation(ctx context.Context, vendor *models.Vendor, rfp *models.RFP, customMessage string) error
	SendConfirmation(ctx context.Context, vendor *models.Vendor, rfp *models.RFP, proposal *models.Proposal) error
}

// Notifier выполняет задачу в фоне, результат запросу не возвращается
type Notifier interface {
	Submit(job notify.Job) bool
}
