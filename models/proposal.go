package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProposalStatus string

const (
	ProposalDraft       ProposalStatus = "draft"
	ProposalSubmitted   ProposalStatus = "submitted"
	ProposalUnderReview ProposalStatus = "under-review"
	ProposalShortlisted ProposalStatus = "shortlisted"
	ProposalAccepted    ProposalStatus = "accepted"
	ProposalRejected    ProposalStatus = "rejected"
)

var ProposalStatuses = []ProposalStatus{
	ProposalDraft,
	ProposalSubmitted,
	ProposalUnderReview,
	ProposalShortlisted,
	ProposalAccepted,
	ProposalRejected,
}

func (s ProposalStatus) Valid() bool {
	for _, v := range ProposalStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Milestone struct {
	Name        string `json:"name"`
	Date        Date   `json:"date"`
	Description string `json:"description,omitempty"`
}

type Timeline struct {
	StartDate  Date        `json:"startDate"`
	EndDate    Date        `json:"endDate"`
	Milestones []Milestone `json:"milestones"`
}

func (t Timeline) Value() (driver.Value, error) { return jsonbValue(t) }
func (t *Timeline) Scan(src any) error         { return jsonbScan(src, t) }

type PriceItem struct {
	Item        string          `json:"item"`
	Description string          `json:"description,omitempty"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

type Pricing struct {
	TotalAmount  *decimal.Decimal `json:"totalAmount" validate:"required"`
	Currency     string           `json:"currency"`
	Breakdown    []PriceItem      `json:"breakdown"`
	PaymentTerms string           `json:"paymentTerms,omitempty"`
}

func (p Pricing) Value() (driver.Value, error) { return jsonbValue(p) }
func (p *Pricing) Scan(src any) error         { return jsonbScan(src, p) }

// Amount сумма предложения, ноль если не указана
func (p Pricing) Amount() decimal.Decimal {
	if p.TotalAmount == nil {
		return decimal.Zero
	}
	return *p.TotalAmount
}

type TeamMember struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Experience string `json:"experience,omitempty"`
}

type Team []TeamMember

func (t Team) Value() (driver.Value, error) { return jsonbValue(t) }
func (t *Team) Scan(src any) error         { return jsonbScan(src, t) }

type Scores struct {
	Technical  float64 `json:"technical" validate:"gte=0,lte=100"`
	Financial  float64 `json:"financial" validate:"gte=0,lte=100"`
	Experience float64 `json:"experience" validate:"gte=0,lte=100"`
	Overall    float64 `json:"overall" validate:"gte=0,lte=100"`
}

// Clamp приводит оценки к диапазону 0..100
func (s Scores) Clamp() Scores {
	return Scores{
		Technical:  clampScore(s.Technical),
		Financial:  clampScore(s.Financial),
		Experience: clampScore(s.Experience),
		Overall:    clampScore(s.Overall),
	}
}

func clampScore(v float64) float64 {
	return max(0, min(100, v))
}

func (s Scores) Value() (driver.Value, error) { return jsonbValue(s) }
func (s *Scores) Scan(src any) error         { return jsonbScan(src, s) }

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

type AIAnalysis struct {
	Strengths          []string  `json:"strengths"`
	Weaknesses         []string  `json:"weaknesses"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	Recommendation     string    `json:"recommendation"`
	ComplianceScore    float64   `json:"complianceScore"`
	SuggestedQuestions []string  `json:"suggestedQuestions,omitempty"`
	AnalyzedAt         time.Time `json:"analyzedAt"`
}

func (a AIAnalysis) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *AIAnalysis) Scan(src any) error         { return jsonbScan(src, a) }

// EvaluatorNote заметки только дописываются
type EvaluatorNote struct {
	Note      string    `json:"note" validate:"required,max=2000"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n *EvaluatorNote) Normalize() {
	n.Note = strings.TrimSpace(n.Note)
	n.CreatedBy = strings.TrimSpace(n.CreatedBy)
	if n.CreatedBy == "" {
		n.CreatedBy = "evaluator"
	}
}

func (n *EvaluatorNote) Validate() []FieldError {
	return validateStruct(n)
}

type EvaluatorNotes []EvaluatorNote

func (n EvaluatorNotes) Value() (driver.Value, error) { return jsonbValue(n) }
func (n *EvaluatorNotes) Scan(src any) error         { return jsonbScan(src, n) }

// Сущность Предложения
type Proposal struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	RFPID             uuid.UUID      `db:"rfp_id" json:"rfpId" validate:"required"`
	VendorID          uuid.UUID      `db:"vendor_id" json:"vendorId" validate:"required"`
	RFP               *RFPRef        `db:"rfp" json:"rfp,omitempty"`
	Vendor            *VendorRef     `db:"vendor" json:"vendor,omitempty"`
	Title             string         `db:"title" json:"title" validate:"required"`
	ExecutiveSummary  string         `db:"executive_summary" json:"executive_summary" validate:"required"`
	TechnicalApproach string         `db:"technical_approach" json:"technical_approach,omitempty"`
	Timeline          Timeline       `db:"timeline" json:"timeline"`
	Pricing           Pricing        `db:"pricing" json:"pricing"`
	Team              Team           `db:"team" json:"team"`
	Attachments       Attachments    `db:"attachments" json:"attachments"`
	Status            ProposalStatus `db:"status" json:"status" validate:"required,oneof=draft submitted under-review shortlisted accepted rejected"`
	Scores            *Scores        `db:"scores" json:"scores,omitempty"`
	AIAnalysis        *AIAnalysis    `db:"ai_analysis" json:"aiAnalysis,omitempty"`
	EvaluatorNotes    EvaluatorNotes `db:"evaluator_notes" json:"evaluatorNotes"`
	SubmittedAt       time.Time      `db:"submitted_at" json:"submittedAt"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

func (p *Proposal) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.ExecutiveSummary = strings.TrimSpace(p.ExecutiveSummary)
	if p.Status == "" {
		p.Status = ProposalSubmitted
	}
	if p.Pricing.Currency == "" {
		p.Pricing.Currency = "USD"
	}
	if p.Pricing.Breakdown == nil {
		p.Pricing.Breakdown = []PriceItem{}
	}
	if p.Timeline.Milestones == nil {
		p.Timeline.Milestones = []Milestone{}
	}
	if p.Team == nil {
		p.Team = Team{}
	}
	if p.Attachments == nil {
		p.Attachments = Attachments{}
	}
	if p.EvaluatorNotes == nil {
		p.EvaluatorNotes = EvaluatorNotes{}
	}
}

func (p *Proposal) Validate() []FieldError {
	errs := validateStruct(p)
	if p.Pricing.TotalAmount != nil && p.Pricing.TotalAmount.IsNegative() {
		errs = append(errs, FieldError{Field: "pricing.totalAmount", Message: "Total amount cannot be negative"})
	}
	if p.Timeline.StartDate.Malformed() {
		errs = append(errs, FieldError{Field: "timeline.startDate", Message: "Invalid date format"})
	}
	if p.Timeline.EndDate.Malformed() {
		errs = append(errs, FieldError{Field: "timeline.endDate", Message: "Invalid date format"})
	}
	if !p.Timeline.StartDate.IsZero() && !p.Timeline.EndDate.IsZero() && p.Timeline.EndDate.Before(p.Timeline.StartDate.Time) {
		errs = append(errs, FieldError{Field: "timeline.endDate", Message: "End date must not precede start date"})
	}
	return errs
}

// Digest компактное представление для сравнения предложений
type ProposalDigest struct {
	ID      uuid.UUID        `json:"id"`
	Title   string           `json:"title"`
	Vendor  *VendorRef       `json:"vendor,omitempty"`
	Pricing *decimal.Decimal `json:"pricing"`
	Scores  *Scores          `json:"scores,omitempty"`
}

func (p *Proposal) Digest() ProposalDigest {
	return ProposalDigest{
		ID:      p.ID,
		Title:   p.Title,
		Vendor:  p.Vendor,
		Pricing: p.Pricing.TotalAmount,
		Scores:  p.Scores,
	}
}

type ProposalFilter struct {
	RFPID    *uuid.UUID
	VendorID *uuid.UUID
	Status   string
	Sort     Sort
}

type ProposalStats struct {
	Total        int             `json:"total"`
	ByStatus     map[string]int  `json:"byStatus"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
}
