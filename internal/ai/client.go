// Package ai обращается к языковой модели через OpenAI chat completions.
// Все ответы запрашиваются в режиме JSON и разбираются в типы пакета.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/internal/config"
	"github.com/Shreyansh0843/rfp-system/models"
)

var (
	ErrNotConfigured = errors.New("AI service is not configured")
	ErrEmptyResponse = errors.New("empty response from model")
)

type Client struct {
	api   *openai.Client
	model string
	log   *zap.Logger
}

func NewClient(cfg config.OpenAIConfig, log *zap.Logger) *Client {
	c := &Client{model: cfg.Model, log: log.Named("ai")}
	if c.model == "" {
		c.model = openai.GPT4oMini
	}
	if cfg.APIKey == "" {
		return c
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

type completion struct {
	system      string
	user        string
	temperature float32
	maxTokens   int
}

// complete отправляет запрос и разбирает JSON из первого варианта ответа в out
func (c *Client) complete(ctx context.Context, req completion, out any) error {
	if c.api == nil {
		return ErrNotConfigured
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.system},
			{Role: openai.ChatMessageRoleUser, Content: req.user},
		},
		Temperature: req.temperature,
		MaxTokens:   req.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("invalid JSON from model: %w", err)
	}
	return nil
}

func (c *Client) ParseRFP(ctx context.Context, text string) (*ParsedRFP, error) {
	var parsed ParsedRFP
	err := c.complete(ctx, completion{
		system:      parsePrompt,
		user:        text,
		temperature: 0.7,
		maxTokens:   2000,
	}, &parsed)
	if err != nil {
		c.log.Error("rfp parsing failed", zap.Error(err))
		return nil, fmt.Errorf("failed to parse RFP: %w", err)
	}
	c.log.Info("rfp parsed from natural language", zap.String("title", parsed.Title))
	return &parsed, nil
}

type proposalInput struct {
	Title             string         `json:"title"`
	Summary           string         `json:"summary"`
	TechnicalApproach string         `json:"technicalApproach"`
	Pricing           models.Pricing `json:"pricing"`
	Team              models.Team    `json:"team"`
}

func (c *Client) AnalyzeProposal(ctx context.Context, p *models.Proposal, requirements models.Requirements) (*Analysis, error) {
	payload, err := json.Marshal(struct {
		Requirements models.Requirements `json:"requirements"`
		Proposal     proposalInput       `json:"proposal"`
	}{
		Requirements: nonNil(requirements),
		Proposal: proposalInput{
			Title:             p.Title,
			Summary:           p.ExecutiveSummary,
			TechnicalApproach: p.TechnicalApproach,
			Pricing:           p.Pricing,
			Team:              p.Team,
		},
	})
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	err = c.complete(ctx, completion{
		system:      analyzePrompt,
		user:        string(payload),
		temperature: 0.5,
		maxTokens:   1500,
	}, &analysis)
	if err != nil {
		c.log.Error("proposal analysis failed", zap.String("proposal_id", p.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to analyze proposal: %w", err)
	}
	analysis.normalize()
	c.log.Info("proposal analyzed", zap.String("proposal_id", p.ID.String()))
	return &analysis, nil
}

type proposalSummary struct {
	ID                string `json:"id"`
	Vendor            string `json:"vendor"`
	Title             string `json:"title"`
	Price             any    `json:"price"`
	Summary           string `json:"summary"`
	TechnicalApproach string `json:"technicalApproach"`
}

func (c *Client) CompareProposals(ctx context.Context, proposals []models.Proposal, requirements models.Requirements) (*Comparison, error) {
	summaries := make([]proposalSummary, 0, len(proposals))
	for _, p := range proposals {
		vendor := "Unknown"
		if p.Vendor != nil && p.Vendor.Name != "" {
			vendor = p.Vendor.Name
		}
		summaries = append(summaries, proposalSummary{
			ID:                p.ID.String(),
			Vendor:            vendor,
			Title:             p.Title,
			Price:             p.Pricing.TotalAmount,
			Summary:           p.ExecutiveSummary,
			TechnicalApproach: p.TechnicalApproach,
		})
	}
	payload, err := json.Marshal(struct {
		Requirements models.Requirements `json:"requirements"`
		Proposals    []proposalSummary   `json:"proposals"`
	}{nonNil(requirements), summaries})
	if err != nil {
		return nil, err
	}

	var comparison Comparison
	err = c.complete(ctx, completion{
		system:      comparePrompt,
		user:        string(payload),
		temperature: 0.5,
		maxTokens:   2500,
	}, &comparison)
	if err != nil {
		c.log.Error("proposal comparison failed", zap.Int("proposals", len(proposals)), zap.Error(err))
		return nil, fmt.Errorf("failed to compare proposals: %w", err)
	}
	c.log.Info("proposals compared", zap.Int("proposals", len(proposals)))
	return &comparison, nil
}

func (c *Client) Suggest(ctx context.Context, category, description string) (*Suggestions, error) {
	var suggestions Suggestions
	err := c.complete(ctx, completion{
		system:      suggestPrompt,
		user:        fmt.Sprintf("Category: %s\nDescription: %s", category, description),
		temperature: 0.7,
		maxTokens:   1500,
	}, &suggestions)
	if err != nil {
		c.log.Error("rfp suggestions failed", zap.Error(err))
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}
	return &suggestions, nil
}

func nonNil(r models.Requirements) models.Requirements {
	if r == nil {
		return models.Requirements{}
	}
	return r
}
