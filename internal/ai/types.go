package ai

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shreyansh0843/rfp-system/models"
)

type SuggestedRequirement struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Weight      float64 `json:"weight,omitempty"`
}

type ParsedBudget struct {
	Min      decimal.Decimal `json:"min"`
	Max      decimal.Decimal `json:"max"`
	Currency string          `json:"currency,omitempty"`
}

// ParsedRFP структура, извлечённая моделью из свободного текста
type ParsedRFP struct {
	Title                     string                       `json:"title"`
	Description               string                       `json:"description"`
	Category                  string                       `json:"category"`
	Budget                    *ParsedBudget                `json:"budget"`
	SuggestedDeadline         string                       `json:"suggestedDeadline"`
	Requirements              []SuggestedRequirement       `json:"requirements"`
	EvaluationCriteria        []models.EvaluationCriterion `json:"evaluationCriteria"`
	SuggestedVendorCategories []string                     `json:"suggestedVendorCategories"`
	RiskFactors               []string                     `json:"riskFactors"`
	Summary                   string                       `json:"summary"`
}

// defaultLead срок подачи, если модель не предложила разборчивую дату
const defaultLead = 30 * 24 * time.Hour

// ToRFP собирает черновик RFP. Заданный пользователем срок важнее предложенного моделью.
func (p *ParsedRFP) ToRFP(deadline models.Date, now time.Time) *models.RFP {
	rfp := &models.RFP{
		Title:       p.Title,
		Description: p.Description,
		Category:    models.ParseCategory(p.Category),
		Status:      models.RFPDraft,
		Deadline:    deadline,
	}
	if rfp.Deadline.IsZero() || rfp.Deadline.Malformed() {
		if d, err := models.ParseDate(p.SuggestedDeadline); err == nil {
			rfp.Deadline = d
		} else {
			rfp.Deadline = models.NewDate(now.Add(defaultLead).UTC())
		}
	}
	if p.Budget != nil {
		rfp.Budget = models.Budget{Min: p.Budget.Min, Max: p.Budget.Max, Currency: p.Budget.Currency}
	}

	titles := make([]string, 0, len(p.Requirements))
	for _, r := range p.Requirements {
		rfp.Requirements = append(rfp.Requirements, models.Requirement{
			Title:       r.Title,
			Description: r.Description,
			Priority:    parsePriority(r.Priority),
			Weight:      r.Weight,
		})
		titles = append(titles, r.Title)
	}
	rfp.EvaluationCriteria = p.EvaluationCriteria

	rfp.AIGeneratedContent = &models.AIGeneratedContent{
		Summary:               p.Summary,
		SuggestedRequirements: titles,
		RiskAnalysis:          strings.Join(p.RiskFactors, ". "),
		GeneratedAt:           now.UTC(),
	}
	rfp.Normalize()
	return rfp
}

func parsePriority(s string) models.Priority {
	p := models.Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	return models.PriorityMustHave
}

type Analysis struct {
	Strengths          []string         `json:"strengths"`
	Weaknesses         []string         `json:"weaknesses"`
	RiskLevel          models.RiskLevel `json:"riskLevel"`
	ComplianceScore    float64          `json:"complianceScore"`
	Recommendation     string           `json:"recommendation"`
	SuggestedQuestions []string         `json:"suggestedQuestions"`
	Scores             models.Scores    `json:"scores"`
}

// normalize исправляет то, что модель могла вернуть вне допустимых значений
func (a *Analysis) normalize() {
	a.Scores = a.Scores.Clamp()
	a.ComplianceScore = max(0, min(100, a.ComplianceScore))
	a.RiskLevel = models.RiskLevel(strings.ToLower(string(a.RiskLevel)))
	if !a.RiskLevel.Valid() {
		a.RiskLevel = models.RiskMedium
	}
	if a.Strengths == nil {
		a.Strengths = []string{}
	}
	if a.Weaknesses == nil {
		a.Weaknesses = []string{}
	}
}

// Stored переводит ответ модели в то, что хранится в предложении
func (a *Analysis) Stored(now time.Time) models.AIAnalysis {
	return models.AIAnalysis{
		Strengths:          a.Strengths,
		Weaknesses:         a.Weaknesses,
		RiskLevel:          a.RiskLevel,
		Recommendation:     a.Recommendation,
		ComplianceScore:    a.ComplianceScore,
		SuggestedQuestions: a.SuggestedQuestions,
		AnalyzedAt:         now.UTC(),
	}
}

type Ranking struct {
	ProposalID string  `json:"proposalId"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Reasoning  string  `json:"reasoning"`
}

type ComparisonMatrix struct {
	Criteria []string                      `json:"criteria"`
	Scores   map[string]map[string]float64 `json:"scores"`
}

type ProposalRisks struct {
	ProposalID string   `json:"proposalId"`
	Risks      []string `json:"risks"`
}

type NegotiationPoints struct {
	ProposalID string   `json:"proposalId"`
	Points     []string `json:"points"`
}

// Comparison не сохраняется, только возвращается клиенту
type Comparison struct {
	Rankings          []Ranking           `json:"rankings"`
	ComparisonMatrix  ComparisonMatrix    `json:"comparisonMatrix"`
	Recommendation    string              `json:"recommendation"`
	RiskAnalysis      []ProposalRisks     `json:"riskAnalysis"`
	NegotiationPoints []NegotiationPoints `json:"negotiationPoints"`
}

type Suggestions struct {
	SuggestedRequirements []SuggestedRequirement       `json:"suggestedRequirements"`
	SuggestedCriteria     []models.EvaluationCriterion `json:"suggestedCriteria"`
	IndustryBestPractices []string                     `json:"industryBestPractices"`
	PotentialRisks        []string                     `json:"potentialRisks"`
	RecommendedTimeline   string                       `json:"recommendedTimeline"`
}
