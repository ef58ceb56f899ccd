package analyzer

import (
	"context"
	"fmt"
	"strings"

	"coinsentinel/internal/news"
	"coinsentinel/internal/prompts"

	"github.com/sashabaranov/go-openai"
)

// HeadlineSource supplies recent headlines for a coin.
type HeadlineSource interface {
	FetchHeadlines(ctx context.Context, coin string, limit int) ([]news.Article, error)
}

type Config struct {
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint; empty means api.openai.com
	Model       string
	Temperature float32
	MaxTokens   int
	Headlines   int
}

type SentimentAnalyzer struct {
	openaiClient *openai.Client
	news         HeadlineSource
	model        string
	temperature  float32
	maxTokens    int
	headlines    int
}

func NewSentimentAnalyzer(cfg Config, source HeadlineSource) *SentimentAnalyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	headlines := cfg.Headlines
	if headlines <= 0 {
		headlines = 5
	}

	return &SentimentAnalyzer{
		openaiClient: openai.NewClientWithConfig(clientCfg),
		news:         source,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		headlines:    headlines,
	}
}

// Analyze returns the model's verdict text for coin's latest headlines. No
// headlines is not an error: the text says so and classifies as unknown.
func (sa *SentimentAnalyzer) Analyze(ctx context.Context, coin string) (string, error) {
	articles, err := sa.news.FetchHeadlines(ctx, coin, sa.headlines)
	if err != nil {
		return "", fmt.Errorf("headlines for %s: %w", coin, err)
	}

	if len(articles) == 0 {
		return fmt.Sprintf("No recent news found for %s.", coin), nil
	}

	resp, err := sa.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: sa.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: prompts.SystemPrompt(),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompts.SentimentPrompt(coin, news.Titles(articles)),
				},
			},
			Temperature: sa.temperature,
			MaxTokens:   sa.maxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("LLM API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from LLM")
	}

	return text, nil
}
