package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/internal/config"
	"github.com/Shreyansh0843/rfp-system/models"
)

// fakeModel отвечает в формате chat completions и запоминает последний запрос
type fakeModel struct {
	reply  string
	status int
	last   openai.ChatCompletionRequest
	calls  int
}

func (f *fakeModel) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		f.calls++
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.last))

		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  f.last.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, f *fakeModel) *Client {
	srv := f.server(t)
	return NewClient(config.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/"}, zap.NewNop())
}

func TestParseRFP(t *testing.T) {
	f := &fakeModel{reply: `{
		"title": "Laptop refresh",
		"description": "Replace 50 laptops",
		"category": "technology",
		"budget": {"min": 40000, "max": 60000},
		"suggestedDeadline": "2026-12-01",
		"requirements": [{"title": "16GB RAM", "priority": "essential"}, {"title": "Warranty", "priority": "nice-to-have"}],
		"evaluationCriteria": [{"name": "Price", "weight": 40}],
		"suggestedVendorCategories": ["Technology"],
		"riskFactors": ["Supply delays", "Price volatility"],
		"summary": "Hardware refresh"
	}`}
	c := newTestClient(t, f)

	parsed, err := c.ParseRFP(context.Background(), "we need 50 laptops")
	require.NoError(t, err)
	require.Equal(t, "Laptop refresh", parsed.Title)
	require.Equal(t, "gpt-4o-mini", f.last.Model)
	require.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, f.last.ResponseFormat.Type)
	require.Equal(t, "we need 50 laptops", f.last.Messages[1].Content)

	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rfp := parsed.ToRFP(models.Date{}, now)
	require.Equal(t, models.CategoryTechnology, rfp.Category)
	require.Equal(t, models.RFPDraft, rfp.Status)
	require.Equal(t, "2026-12-01", rfp.Deadline.Format("2006-01-02"))
	require.True(t, decimal.NewFromInt(60000).Equal(rfp.Budget.Max))
	require.Equal(t, "USD", rfp.Budget.Currency)
	require.Equal(t, models.PriorityMustHave, rfp.Requirements[0].Priority)
	require.Equal(t, models.PriorityNiceToHave, rfp.Requirements[1].Priority)
	require.Equal(t, float64(1), rfp.Requirements[0].Weight)
	require.Equal(t, []string{"16GB RAM", "Warranty"}, rfp.AIGeneratedContent.SuggestedRequirements)
	require.Equal(t, "Supply delays. Price volatility", rfp.AIGeneratedContent.RiskAnalysis)
	require.Empty(t, rfp.Validate())
}

func TestParsedRFPDeadlinePrecedence(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	parsed := &ParsedRFP{Title: "T", Description: "D", Category: "Space", SuggestedDeadline: "2027-01-01"}

	given, err := models.ParseDate("2026-11-15")
	require.NoError(t, err)
	rfp := parsed.ToRFP(given, now)
	require.Equal(t, "2026-11-15", rfp.Deadline.Format("2006-01-02"))
	require.Equal(t, models.CategoryOther, rfp.Category)

	parsed.SuggestedDeadline = "soon"
	rfp = parsed.ToRFP(models.Date{}, now)
	require.Equal(t, "2026-10-31", rfp.Deadline.Format("2006-01-02"))
}

func TestAnalyzeProposal(t *testing.T) {
	f := &fakeModel{reply: `{
		"strengths": ["Experienced team"],
		"weaknesses": ["High price"],
		"riskLevel": "medium",
		"complianceScore": 82,
		"recommendation": "Shortlist",
		"suggestedQuestions": ["Can you phase delivery?"],
		"scores": {"technical": 85, "financial": 60, "experience": 90, "overall": 78}
	}`}
	c := newTestClient(t, f)

	amount := decimal.NewFromInt(1000)
	p := &models.Proposal{
		ID:               uuid.New(),
		Title:            "P1",
		ExecutiveSummary: "S",
		Pricing:          models.Pricing{TotalAmount: &amount, Currency: "USD"},
	}
	analysis, err := c.AnalyzeProposal(context.Background(), p, nil)
	require.NoError(t, err)
	require.Equal(t, models.RiskMedium, analysis.RiskLevel)
	require.Equal(t, float64(78), analysis.Scores.Overall)

	var sent struct {
		Requirements []any `json:"requirements"`
		Proposal     struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
			Pricing struct {
				TotalAmount float64 `json:"totalAmount"`
			} `json:"pricing"`
		} `json:"proposal"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.last.Messages[1].Content), &sent))
	require.NotNil(t, sent.Requirements)
	require.Equal(t, "S", sent.Proposal.Summary)
	require.Equal(t, float64(1000), sent.Proposal.Pricing.TotalAmount)

	stored := analysis.Stored(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.Equal(t, 2026, stored.AnalyzedAt.Year())
	require.Equal(t, float64(82), stored.ComplianceScore)
}

func TestCompareProposals(t *testing.T) {
	f := &fakeModel{reply: `{
		"rankings": [{"proposalId": "a", "rank": 1, "score": 90, "reasoning": "best value"}],
		"comparisonMatrix": {"criteria": ["Price"], "scores": {"a": {"Price": 80}}},
		"recommendation": "Pick a",
		"riskAnalysis": [{"proposalId": "a", "risks": ["none"]}],
		"negotiationPoints": [{"proposalId": "a", "points": ["discount"]}]
	}`}
	c := newTestClient(t, f)

	proposals := []models.Proposal{
		{ID: uuid.New(), Title: "A", Vendor: &models.VendorRef{Name: "Acme"}},
		{ID: uuid.New(), Title: "B"},
	}
	cmp, err := c.CompareProposals(context.Background(), proposals, models.Requirements{{Title: "R1"}})
	require.NoError(t, err)
	require.Equal(t, "Pick a", cmp.Recommendation)
	require.Equal(t, float64(80), cmp.ComparisonMatrix.Scores["a"]["Price"])
	require.Contains(t, f.last.Messages[1].Content, `"vendor":"Acme"`)
	require.Contains(t, f.last.Messages[1].Content, `"vendor":"Unknown"`)
}

func TestSuggest(t *testing.T) {
	f := &fakeModel{reply: `{"suggestedRequirements":[{"title":"SLA","priority":"must-have"}],"recommendedTimeline":"6 weeks"}`}
	c := newTestClient(t, f)

	s, err := c.Suggest(context.Background(), "Technology", "CRM rollout")
	require.NoError(t, err)
	require.Equal(t, "6 weeks", s.RecommendedTimeline)
	require.Equal(t, "Category: Technology\nDescription: CRM rollout", f.last.Messages[1].Content)
}

func TestClientErrors(t *testing.T) {
	f := &fakeModel{status: http.StatusServiceUnavailable}
	c := newTestClient(t, f)
	_, err := c.Suggest(context.Background(), "Technology", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to generate suggestions")
	require.Equal(t, 1, f.calls)

	bad := &fakeModel{reply: "not json"}
	c = newTestClient(t, bad)
	_, err = c.ParseRFP(context.Background(), "x")
	require.ErrorContains(t, err, "invalid JSON from model")

	unconfigured := NewClient(config.OpenAIConfig{}, zap.NewNop())
	_, err = unconfigured.ParseRFP(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Timeout: 50 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	_, err := c.Suggest(context.Background(), "Technology", "x")
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestAnalysisNormalize(t *testing.T) {
	a := &Analysis{
		RiskLevel:       "HIGH",
		ComplianceScore: 140,
		Scores:          models.Scores{Technical: -5, Financial: 120, Experience: 50, Overall: 101},
	}
	a.normalize()
	require.Equal(t, models.RiskHigh, a.RiskLevel)
	require.Equal(t, float64(100), a.ComplianceScore)
	require.Equal(t, models.Scores{Technical: 0, Financial: 100, Experience: 50, Overall: 100}, a.Scores)
	require.NotNil(t, a.Strengths)
	require.NotNil(t, a.Weaknesses)

	b := &Analysis{RiskLevel: "catastrophic"}
	b.normalize()
	require.Equal(t, models.RiskMedium, b.RiskLevel)
}
