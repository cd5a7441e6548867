package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Shreyansh0843/rfp-system/db"
	"github.com/Shreyansh0843/rfp-system/models"
)

//go:embed seed.yaml
var seedYAML []byte

const day = 24 * time.Hour

type seedVendor struct {
	Name     string   `yaml:"name"`
	Email    string   `yaml:"email"`
	Company  string   `yaml:"company"`
	Phone    string   `yaml:"phone"`
	Category string   `yaml:"category"`
	Rating   float64  `yaml:"rating"`
	City     string   `yaml:"city"`
	State    string   `yaml:"state"`
	Tags     []string `yaml:"tags"`
}

type seedBudget struct {
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Currency string  `yaml:"currency"`
}

type seedRFP struct {
	Title        string                       `yaml:"title"`
	Description  string                       `yaml:"description"`
	Category     string                       `yaml:"category"`
	Budget       seedBudget                   `yaml:"budget"`
	DeadlineDays int                          `yaml:"deadline_days"`
	Status       string                       `yaml:"status"`
	Requirements []models.Requirement         `yaml:"requirements"`
	Criteria     []models.EvaluationCriterion `yaml:"criteria"`
}

type seedPriceItem struct {
	Item      string  `yaml:"item"`
	Quantity  float64 `yaml:"quantity"`
	UnitPrice float64 `yaml:"unit_price"`
}

type seedProposal struct {
	RFP          string              `yaml:"rfp"`
	Vendor       string              `yaml:"vendor"`
	Title        string              `yaml:"title"`
	Summary      string              `yaml:"summary"`
	Approach     string              `yaml:"approach"`
	Total        float64             `yaml:"total"`
	PaymentTerms string              `yaml:"payment_terms"`
	Breakdown    []seedPriceItem     `yaml:"breakdown"`
	StartDays    int                 `yaml:"start_days"`
	EndDays      int                 `yaml:"end_days"`
	Team         []models.TeamMember `yaml:"team"`
}

type seedData struct {
	Vendors   []seedVendor   `yaml:"vendors"`
	RFPs      []seedRFP      `yaml:"rfps"`
	Proposals []seedProposal `yaml:"proposals"`
}

func parseSeed(raw []byte) (*seedData, error) {
	var data seedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	return &data, nil
}

// seedStore часть хранилища, нужная для заполнения демо-данными
type seedStore interface {
	ListVendors(ctx context.Context, f models.VendorFilter, page models.Page) ([]models.Vendor, int, error)
	CreateVendor(ctx context.Context, v *models.Vendor) error
	ListRFPs(ctx context.Context, f models.RFPFilter, page models.Page) ([]models.RFP, int, error)
	CreateRFP(ctx context.Context, r *models.RFP) error
	SubmitProposal(ctx context.Context, p *models.Proposal) error
}

type seedReport struct {
	Vendors, RFPs, Proposals int
	Skipped                  int
}

// seeder повторный запуск не создаёт дублей: существующие поставщики (по email)
// и RFP (по заголовку) пропускаются, предложения добавляются только к новым RFP
type seeder struct {
	store seedStore
	log   *zap.Logger
	now   time.Time

	vendors map[string]uuid.UUID
	rfps    map[string]uuid.UUID
	report  seedReport
}

func runSeed(ctx context.Context, store seedStore, data *seedData, now time.Time, log *zap.Logger) (seedReport, error) {
	s := &seeder{
		store:   store,
		log:     log,
		now:     now.UTC(),
		vendors: map[string]uuid.UUID{},
		rfps:    map[string]uuid.UUID{},
	}
	for _, v := range data.Vendors {
		if err := s.vendor(ctx, v); err != nil {
			return s.report, err
		}
	}
	for _, r := range data.RFPs {
		if err := s.rfp(ctx, r); err != nil {
			return s.report, err
		}
	}
	for _, p := range data.Proposals {
		if err := s.proposal(ctx, p); err != nil {
			return s.report, err
		}
	}
	return s.report, nil
}

func (s *seeder) vendor(ctx context.Context, sv seedVendor) error {
	v := &models.Vendor{
		Name:     sv.Name,
		Email:    sv.Email,
		Company:  sv.Company,
		Phone:    sv.Phone,
		Category: models.ParseCategory(sv.Category),
		Rating:   sv.Rating,
		Address:  models.Address{City: sv.City, State: sv.State},
		Tags:     sv.Tags,
	}
	v.Normalize()
	if errs := v.Validate(); len(errs) > 0 {
		return fmt.Errorf("seed vendor %s: %v", sv.Email, errs)
	}

	err := s.store.CreateVendor(ctx, v)
	if errors.Is(err, db.ErrDuplicateEmail) {
		id, err := s.existingVendor(ctx, v.Email)
		if err != nil {
			return err
		}
		s.vendors[v.Email] = id
		s.report.Skipped++
		s.log.Info("vendor exists, skipped", zap.String("email", v.Email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed vendor %s: %w", sv.Email, err)
	}
	s.vendors[v.Email] = v.ID
	s.report.Vendors++
	return nil
}

func (s *seeder) existingVendor(ctx context.Context, email string) (uuid.UUID, error) {
	list, _, err := s.store.ListVendors(ctx, models.VendorFilter{Search: email}, models.Page{Number: 1, Limit: 10})
	if err != nil {
		return uuid.Nil, err
	}
	for _, v := range list {
		if strings.EqualFold(v.Email, email) {
			return v.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("vendor %s reported as duplicate but not found", email)
}

func (s *seeder) rfp(ctx context.Context, sr seedRFP) error {
	list, _, err := s.store.ListRFPs(ctx, models.RFPFilter{Search: sr.Title}, models.Page{Number: 1, Limit: 100})
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.Title == sr.Title {
			s.report.Skipped++
			s.log.Info("rfp exists, skipped", zap.String("title", sr.Title))
			return nil
		}
	}

	r := &models.RFP{
		Title:       sr.Title,
		Description: sr.Description,
		Category:    models.ParseCategory(sr.Category),
		Budget: models.Budget{
			Min:      decimal.NewFromFloat(sr.Budget.Min),
			Max:      decimal.NewFromFloat(sr.Budget.Max),
			Currency: sr.Budget.Currency,
		},
		Deadline:           models.NewDate(s.now.Add(time.Duration(sr.DeadlineDays) * day)),
		Status:             models.RFPStatus(sr.Status),
		Requirements:       sr.Requirements,
		EvaluationCriteria: sr.Criteria,
		CreatedBy:          "seed",
	}
	r.Normalize()
	if errs := r.Validate(); len(errs) > 0 {
		return fmt.Errorf("seed rfp %q: %v", sr.Title, errs)
	}
	if err := s.store.CreateRFP(ctx, r); err != nil {
		return fmt.Errorf("seed rfp %q: %w", sr.Title, err)
	}
	s.rfps[r.Title] = r.ID
	s.report.RFPs++
	return nil
}

func (s *seeder) proposal(ctx context.Context, sp seedProposal) error {
	rfpID, ok := s.rfps[sp.RFP]
	if !ok {
		return nil
	}
	vendorID, ok := s.vendors[strings.ToLower(sp.Vendor)]
	if !ok {
		return fmt.Errorf("seed proposal %q: unknown vendor %s", sp.Title, sp.Vendor)
	}

	total := decimal.NewFromFloat(sp.Total)
	breakdown := make([]models.PriceItem, len(sp.Breakdown))
	for i, item := range sp.Breakdown {
		unit := decimal.NewFromFloat(item.UnitPrice)
		breakdown[i] = models.PriceItem{
			Item:      item.Item,
			Quantity:  item.Quantity,
			UnitPrice: unit,
			Total:     unit.Mul(decimal.NewFromFloat(item.Quantity)),
		}
	}
	p := &models.Proposal{
		RFPID:             rfpID,
		VendorID:          vendorID,
		Title:             sp.Title,
		ExecutiveSummary:  sp.Summary,
		TechnicalApproach: sp.Approach,
		Pricing: models.Pricing{
			TotalAmount:  &total,
			Currency:     "USD",
			Breakdown:    breakdown,
			PaymentTerms: sp.PaymentTerms,
		},
		Timeline: models.Timeline{
			StartDate: models.NewDate(s.now.Add(time.Duration(sp.StartDays) * day)),
			EndDate:   models.NewDate(s.now.Add(time.Duration(sp.EndDays) * day)),
		},
		Team:        sp.Team,
		Status:      models.ProposalSubmitted,
		SubmittedAt: s.now,
	}
	p.Normalize()
	if errs := p.Validate(); len(errs) > 0 {
		return fmt.Errorf("seed proposal %q: %v", sp.Title, errs)
	}
	if err := s.store.SubmitProposal(ctx, p); err != nil {
		return fmt.Errorf("seed proposal %q: %w", sp.Title, err)
	}
	s.report.Proposals++
	return nil
}
