package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type RFPStatus string

const (
	RFPDraft     RFPStatus = "draft"
	RFPPublished RFPStatus = "published"
	RFPSent      RFPStatus = "sent"
	RFPClosed    RFPStatus = "closed"
	RFPAwarded   RFPStatus = "awarded"
	RFPCancelled RFPStatus = "cancelled"
)

// порядок стадий: завершающие статусы равноправны
var rfpStage = map[RFPStatus]int{
	RFPDraft:     0,
	RFPPublished: 1,
	RFPSent:      2,
	RFPClosed:    3,
	RFPAwarded:   3,
	RFPCancelled: 3,
}

func (s RFPStatus) Valid() bool {
	_, ok := rfpStage[s]
	return ok
}

func (s RFPStatus) IsTerminal() bool {
	return rfpStage[s] == 3
}

// AcceptsProposals: предложения не принимаются только у закрытых и присуждённых RFP
func (s RFPStatus) AcceptsProposals() bool {
	return s != RFPClosed && s != RFPAwarded
}

// CanTransitionTo разрешает только движение вперёд, завершённый RFP не меняется
func (s RFPStatus) CanTransitionTo(next RFPStatus) bool {
	if s == next {
		return true
	}
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	return rfpStage[next] > rfpStage[s]
}

type Priority string

const (
	PriorityMustHave   Priority = "must-have"
	PriorityNiceToHave Priority = "nice-to-have"
	PriorityOptional   Priority = "optional"
)

func (p Priority) Valid() bool {
	return p == PriorityMustHave || p == PriorityNiceToHave || p == PriorityOptional
}

type RosterStatus string

const (
	RosterPending   RosterStatus = "pending"
	RosterSent      RosterStatus = "sent"
	RosterViewed    RosterStatus = "viewed"
	RosterResponded RosterStatus = "responded"
	RosterDeclined  RosterStatus = "declined"
)

type Budget struct {
	Min      decimal.Decimal `json:"min"`
	Max      decimal.Decimal `json:"max"`
	Currency string          `json:"currency"`
}

func (b Budget) Value() (driver.Value, error) { return jsonbValue(b) }
func (b *Budget) Scan(src any) error         { return jsonbScan(src, b) }

type Requirement struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority" validate:"omitempty,oneof=must-have nice-to-have optional"`
	Weight      float64  `json:"weight" validate:"gte=0"`
}

type Requirements []Requirement

func (r Requirements) Value() (driver.Value, error) { return jsonbValue(r) }
func (r *Requirements) Scan(src any) error         { return jsonbScan(src, r) }

type EvaluationCriterion struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight" validate:"gte=0,lte=100"`
	Description string  `json:"description,omitempty"`
}

type EvaluationCriteria []EvaluationCriterion

func (c EvaluationCriteria) Value() (driver.Value, error) { return jsonbValue(c) }
func (c *EvaluationCriteria) Scan(src any) error         { return jsonbScan(src, c) }

type Attachment struct {
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Type       string     `json:"type,omitempty"`
	Size       int64      `json:"size,omitempty"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
}

type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *Attachments) Scan(src any) error         { return jsonbScan(src, a) }

// AIGeneratedContent то, что вернул разбор текста при создании RFP
type AIGeneratedContent struct {
	Summary               string    `json:"summary"`
	SuggestedRequirements []string  `json:"suggestedRequirements"`
	RiskAnalysis          string    `json:"riskAnalysis"`
	GeneratedAt           time.Time `json:"generatedAt"`
}

func (c AIGeneratedContent) Value() (driver.Value, error) { return jsonbValue(c) }
func (c *AIGeneratedContent) Scan(src any) error         { return jsonbScan(src, c) }

// RosterEntry приглашённый поставщик и его статус по RFP
type RosterEntry struct {
	RFPID    uuid.UUID    `db:"rfp_id" json:"-"`
	VendorID uuid.UUID    `db:"vendor_id" json:"vendorId"`
	Vendor   *VendorRef   `db:"vendor" json:"vendor,omitempty"`
	SentAt   *time.Time   `db:"sent_at" json:"sentAt,omitempty"`
	ViewedAt *time.Time   `db:"viewed_at" json:"viewedAt,omitempty"`
	Status   RosterStatus `db:"status" json:"status"`
}

// Сущность RFP
type RFP struct {
	ID                 uuid.UUID           `db:"id" json:"id"`
	Title              string              `db:"title" json:"title" validate:"required,max=200"`
	Description        string              `db:"description" json:"description" validate:"required"`
	Category           Category            `db:"category" json:"category" validate:"required,oneof=Technology Marketing Consulting Manufacturing Services Other"`
	Budget             Budget              `db:"budget" json:"budget"`
	Deadline           Date                `db:"deadline" json:"deadline"`
	Status             RFPStatus           `db:"status" json:"status" validate:"required,oneof=draft published sent closed awarded cancelled"`
	Requirements       Requirements        `db:"requirements" json:"requirements" validate:"dive"`
	EvaluationCriteria EvaluationCriteria  `db:"evaluation_criteria" json:"evaluationCriteria" validate:"dive"`
	Attachments        Attachments         `db:"attachments" json:"attachments"`
	Vendors            []RosterEntry       `db:"-" json:"vendors"`
	AIGeneratedContent *AIGeneratedContent `db:"ai_generated_content" json:"aiGeneratedContent,omitempty"`
	CreatedBy          string              `db:"created_by" json:"createdBy"`
	Tags               pq.StringArray      `db:"tags" json:"tags"`
	ProposalCount      int                 `db:"proposal_count" json:"proposalCount"`
	CreatedAt          time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updatedAt"`
}

func (r *RFP) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Status == "" {
		r.Status = RFPDraft
	}
	if r.Budget.Currency == "" {
		r.Budget.Currency = "USD"
	}
	if r.CreatedBy == "" {
		r.CreatedBy = "system"
	}
	for i := range r.Requirements {
		if r.Requirements[i].Priority == "" {
			r.Requirements[i].Priority = PriorityMustHave
		}
		if r.Requirements[i].Weight == 0 {
			r.Requirements[i].Weight = 1
		}
	}
	if r.Requirements == nil {
		r.Requirements = Requirements{}
	}
	if r.EvaluationCriteria == nil {
		r.EvaluationCriteria = EvaluationCriteria{}
	}
	if r.Attachments == nil {
		r.Attachments = Attachments{}
	}
	if r.Vendors == nil {
		r.Vendors = []RosterEntry{}
	}
	r.Tags = trimTags(r.Tags)
}

func (r *RFP) Validate() []FieldError {
	errs := validateStruct(r)
	switch {
	case r.Deadline.Malformed():
		errs = append(errs, FieldError{Field: "deadline", Message: "Invalid date format"})
	case r.Deadline.IsZero():
		errs = append(errs, FieldError{Field: "deadline", Message: "Deadline is required"})
	}
	if r.Budget.Min.IsNegative() || r.Budget.Max.IsNegative() {
		errs = append(errs, FieldError{Field: "budget", Message: "Budget cannot be negative"})
	}
	if !r.Budget.Max.IsZero() && r.Budget.Max.LessThan(r.Budget.Min) {
		errs = append(errs, FieldError{Field: "budget.max", Message: "Budget max must not be less than min"})
	}
	return errs
}

// RosterEntryFor ищет запись поставщика в списке приглашённых
func (r *RFP) RosterEntryFor(vendorID uuid.UUID) *RosterEntry {
	for i := range r.Vendors {
		if r.Vendors[i].VendorID == vendorID {
			return &r.Vendors[i]
		}
	}
	return nil
}

// RFPRef краткое представление RFP внутри предложения
type RFPRef struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Title    string    `db:"title" json:"title"`
	Deadline Date      `db:"deadline" json:"deadline"`
	Status   RFPStatus `db:"status" json:"status"`
}

type RFPFilter struct {
	Search   string
	Status   string
	Category string
	Sort     Sort
}

type RFPSummary struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Status    RFPStatus `db:"status" json:"status"`
	Deadline  Date      `db:"deadline" json:"deadline"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type RFPStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByCategory map[string]int `json:"byCategory"`
	Recent     []RFPSummary   `json:"recent"`
}
