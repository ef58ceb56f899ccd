package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coinsentinel/internal/analyzer"
	"coinsentinel/internal/logger"
	"coinsentinel/internal/orchestrator"
	"coinsentinel/internal/watchlist"
)

const genericFailure = "⚠️ Something went wrong, please try again later."

type Aggregator interface {
	Aggregate(ctx context.Context, sub watchlist.Subscriber) (string, error)
}

type Sentiment interface {
	Analyze(ctx context.Context, coin string) (string, error)
}

// Service turns chat commands into store mutations and replies. Every method
// returns a reply; errors are logged, never shown verbatim.
type Service struct {
	store            watchlist.Store
	aggregator       Aggregator
	sentiment        Sentiment
	log              *logger.Logger
	sentimentTimeout time.Duration
}

func NewService(store watchlist.Store, aggregator Aggregator, sentiment Sentiment, log *logger.Logger, sentimentTimeout time.Duration) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if sentimentTimeout <= 0 {
		sentimentTimeout = 45 * time.Second
	}
	return &Service{
		store:            store,
		aggregator:       aggregator,
		sentiment:        sentiment,
		log:              log,
		sentimentTimeout: sentimentTimeout,
	}
}

// Track adds every coin in args to the subscriber's watchlist.
func (s *Service) Track(ctx context.Context, sub watchlist.Subscriber, args string) string {
	coins := strings.Fields(args)
	if len(coins) == 0 {
		return "Please provide a coin. Example: /track bitcoin"
	}

	replies := make([]string, 0, len(coins))
	for _, coin := range coins {
		coin = strings.ToLower(coin)
		outcome, err := s.store.Add(ctx, sub, coin)
		if err != nil {
			replies = append(replies, s.failure("track", sub, coin, err))
			continue
		}
		switch outcome {
		case watchlist.Added:
			replies = append(replies, fmt.Sprintf("✅ Now tracking %s", orchestrator.EscapeMarkdown(coin)))
		case watchlist.AlreadyPresent:
			replies = append(replies, fmt.Sprintf("ℹ️ Already tracking %s", orchestrator.EscapeMarkdown(coin)))
		}
	}
	return strings.Join(replies, "\n")
}

// Untrack removes every coin in args from the subscriber's watchlist.
func (s *Service) Untrack(ctx context.Context, sub watchlist.Subscriber, args string) string {
	coins := strings.Fields(args)
	if len(coins) == 0 {
		return "Please provide a coin. Example: /untrack bitcoin"
	}

	replies := make([]string, 0, len(coins))
	for _, coin := range coins {
		coin = strings.ToLower(coin)
		outcome, err := s.store.Remove(ctx, sub, coin)
		if err != nil {
			replies = append(replies, s.failure("untrack", sub, coin, err))
			continue
		}
		switch outcome {
		case watchlist.Removed:
			replies = append(replies, fmt.Sprintf("🗑 Stopped tracking %s", orchestrator.EscapeMarkdown(coin)))
		case watchlist.NotPresent:
			replies = append(replies, fmt.Sprintf("ℹ️ %s is not in your watchlist", orchestrator.EscapeMarkdown(coin)))
		}
	}
	return strings.Join(replies, "\n")
}

// Watchlist returns the subscriber's current aggregated update.
func (s *Service) Watchlist(ctx context.Context, sub watchlist.Subscriber) string {
	body, err := s.aggregator.Aggregate(ctx, sub)
	if err != nil {
		return s.failure("watchlist", sub, "", err)
	}
	if body == "" {
		return "📭 Your watchlist is empty. Add a coin with /track bitcoin"
	}
	return body
}

// Sentiment answers a one-off sentiment request for a single coin.
func (s *Service) Sentiment(ctx context.Context, args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Please provide a coin. Example: /sentiment bitcoin"
	}
	coin, err := watchlist.NormalizeCoin(fields[0])
	if err != nil {
		return "Please provide a coin. Example: /sentiment bitcoin"
	}

	ctx, cancel := context.WithTimeout(ctx, s.sentimentTimeout)
	defer cancel()

	text, err := s.sentiment.Analyze(ctx, coin)
	if err != nil {
		s.log.Warn("⚠️ Sentiment request failed", logger.String("coin", coin), logger.Error(err))
		return fmt.Sprintf("⚠️ Sentiment for %s is unavailable right now.", orchestrator.EscapeMarkdown(coin))
	}

	verdict := analyzer.Classify(text)
	return fmt.Sprintf("%s *%s*: %s\n\n%s", verdict.Emoji(), orchestrator.EscapeMarkdown(strings.ToUpper(coin)), verdict, orchestrator.EscapeMarkdown(text))
}

// Command is one entry of the bot's command menu.
type Command struct {
	Name        string
	Usage       string
	Description string
}

// Menu lists the commands registered with the chat client, in menu order.
func Menu() []Command {
	return []Command{
		{Name: "sentiment", Usage: "<coin>", Description: "Get AI sentiment for a coin"},
		{Name: "track", Usage: "<coin>", Description: "Add coin to watchlist"},
		{Name: "untrack", Usage: "<coin>", Description: "Remove coin from watchlist"},
		{Name: "watchlist", Description: "View your watchlist"},
		{Name: "help", Description: "Show available commands"},
	}
}

func Help() string {
	var b strings.Builder
	b.WriteString("🤖 *CoinSentinel*\n\n")
	for _, c := range Menu() {
		b.WriteString("/" + c.Name)
		if c.Usage != "" {
			b.WriteString(" " + c.Usage)
		}
		b.WriteString(" - " + c.Description + "\n")
	}
	b.WriteString("\nCoins use CoinGecko ids, e.g. bitcoin, ethereum, solana.")
	return b.String()
}

func (s *Service) failure(op string, sub watchlist.Subscriber, coin string, err error) string {
	if errors.Is(err, watchlist.ErrInvalidCoin) {
		return "Please provide a coin. Example: /track bitcoin"
	}
	s.log.Error("❌ Command failed",
		logger.String("op", op),
		logger.String("subscriber", string(sub)),
		logger.String("coin", coin),
		logger.Error(err))
	return genericFailure
}
