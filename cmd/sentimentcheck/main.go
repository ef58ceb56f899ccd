// Command sentimentcheck runs the live news and LLM path for one coin and
// prints every intermediate step. It needs NEWS_API_KEY and GEMINI_API_KEY
// (or OPENAI_API_KEY); nothing is sent to Telegram.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"coinsentinel/internal/analyzer"
	"coinsentinel/internal/config"
	"coinsentinel/internal/logger"
	"coinsentinel/internal/news"
	"coinsentinel/internal/prices"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	coin := flag.String("coin", "bitcoin", "CoinGecko id to check")
	flag.Parse()

	// The bot token is irrelevant here; satisfy validation if it is unset.
	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		os.Setenv("TELEGRAM_BOT_TOKEN", "unused")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Printf("❌ Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("🔍 Fetching headlines for %s...\n", *coin)
	newsClient := news.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.Timeout)
	articles, err := newsClient.FetchHeadlines(ctx, *coin, cfg.News.PageSize)
	if err != nil {
		fmt.Printf("❌ Error fetching headlines: %v\n", err)
		os.Exit(1)
	}
	if len(articles) == 0 {
		fmt.Println("📭 No headlines found")
	}
	for i, a := range articles {
		fmt.Printf("   %d. %s (%s)\n", i+1, a.Title, a.Source)
	}

	fmt.Printf("\n💰 Quoting %s...\n", *coin)
	quotes := prices.NewCoinGecko(cfg.Prices.BaseURL, cfg.Prices.Currency, cfg.Prices.Timeout, log)
	if q, ok := quotes.Quote(ctx, []string{*coin})[*coin]; ok {
		fmt.Printf("   %.6f %s (%+.2f%% 24h)\n", q.Price, strings.ToUpper(cfg.Prices.Currency), q.Change24h)
	} else {
		fmt.Println("   no price data")
	}

	fmt.Printf("\n🤖 Asking %s for a verdict...\n", cfg.LLM.Model)
	sentiment := analyzer.NewSentimentAnalyzer(analyzer.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Headlines:   cfg.News.PageSize,
	}, newsClient)

	text, err := sentiment.Analyze(ctx, *coin)
	if err != nil {
		fmt.Printf("❌ Error analyzing sentiment: %v\n", err)
		os.Exit(1)
	}

	verdict := analyzer.Classify(text)
	fmt.Printf("\n🎯 Result:\n")
	fmt.Printf("📊 Verdict: %s %s\n", verdict.Emoji(), verdict)
	fmt.Printf("📝 Raw reply: %s\n", text)
}
