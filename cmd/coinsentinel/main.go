package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"coinsentinel/internal/analyzer"
	"coinsentinel/internal/commands"
	"coinsentinel/internal/config"
	"coinsentinel/internal/logger"
	"coinsentinel/internal/metrics"
	"coinsentinel/internal/news"
	"coinsentinel/internal/notifier"
	"coinsentinel/internal/orchestrator"
	"coinsentinel/internal/prices"
	"coinsentinel/internal/watchlist"
)

type CoinSentinelBot struct {
	cfg          *config.Config
	log          *logger.Logger
	telegramBot  *tgbotapi.BotAPI
	notifier     *notifier.Telegram
	orchestrator *orchestrator.Orchestrator
	commands     *commands.Service
	registry     *prometheus.Registry
	closers      []func() error
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("🎯 Starting CoinSentinel - watchlist sentiment bot")

	bot, err := NewCoinSentinelBot(ctx, cfg, log)
	if err != nil {
		log.Error("❌ Failed to initialize bot", logger.Error(err))
		os.Exit(1)
	}
	defer bot.Close()

	if err := bot.Start(ctx); err != nil {
		log.Error("❌ Bot stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("👋 CoinSentinel stopped")
}

func NewCoinSentinelBot(ctx context.Context, cfg *config.Config, log *logger.Logger) (*CoinSentinelBot, error) {
	b := &CoinSentinelBot{cfg: cfg, log: log}

	store, err := b.openStore(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.Telegram.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// Long polling holds the request open for PollTimeout seconds.
	httpClient := &http.Client{Timeout: time.Duration(cfg.Telegram.PollTimeout)*time.Second + cfg.Telegram.SendTimeout}
	telegramBot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	b.telegramBot = telegramBot
	b.notifier = notifier.NewTelegram(telegramBot)
	log.Info("🤖 Authorized on Telegram", logger.String("username", telegramBot.Self.UserName))

	if err := registerCommands(telegramBot); err != nil {
		log.Warn("⚠️ Could not register command menu", logger.Error(err))
	} else {
		log.Info("📋 Registered command menu", logger.Int("commands", len(commands.Menu())))
	}

	newsClient := news.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.Timeout)
	sentiment := analyzer.NewSentimentAnalyzer(analyzer.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Headlines:   cfg.News.PageSize,
	}, newsClient)
	quotes := prices.NewCoinGecko(cfg.Prices.BaseURL, cfg.Prices.Currency, cfg.Prices.Timeout, log)

	b.registry = prometheus.NewRegistry()
	b.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b.orchestrator = orchestrator.New(orchestrator.Deps{
		Store:     store,
		Sentiment: sentiment,
		Prices:    quotes,
		Notifier:  b.notifier,
		Metrics:   metrics.New(b.registry),
		Logger:    log,
	}, orchestrator.Options{
		Concurrency:      cfg.Updates.Concurrency,
		RunTimeout:       cfg.Updates.RunTimeout,
		SentimentTimeout: cfg.Updates.SentimentTimeout,
		PriceTimeout:     cfg.Prices.Timeout,
		SendTimeout:      cfg.Telegram.SendTimeout,
	})

	b.commands = commands.NewService(store, b.orchestrator, sentiment, log, cfg.Updates.SentimentTimeout)

	return b, nil
}

func (b *CoinSentinelBot) openStore(ctx context.Context) (watchlist.Store, error) {
	if b.cfg.Store.Driver == "memory" {
		b.log.Warn("⚠️ Using in-memory watchlist store, subscriptions are lost on restart")
		return watchlist.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     b.cfg.Store.Addr,
		Password: b.cfg.Store.Password,
		DB:       b.cfg.Store.DB,
	})
	store := watchlist.NewRedisStore(client, b.cfg.Store.Prefix)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", b.cfg.Store.Addr, err)
	}

	b.closers = append(b.closers, store.Close)
	b.log.Info("🗄 Connected to Redis", logger.String("addr", b.cfg.Store.Addr))
	return store, nil
}

// Start runs the scheduler, the metrics endpoint and the Telegram update loop
// until ctx is cancelled.
func (b *CoinSentinelBot) Start(ctx context.Context) error {
	cronLog := cronLogger{log: b.log}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	spec := b.cfg.CronSpec()
	if _, err := c.AddFunc(spec, func() { b.runUpdate(ctx) }); err != nil {
		return fmt.Errorf("schedule updates %q: %w", spec, err)
	}
	b.log.Info("⏰ Scheduled watchlist updates", logger.Int("interval_minutes", b.cfg.Updates.IntervalMinutes))
	c.Start()
	defer func() { <-c.Stop().Done() }()

	if b.cfg.Metrics.Enabled {
		srv := b.serveMetrics()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	b.log.Info("✅ CoinSentinel is running. Press Ctrl+C to stop.")
	b.listen(ctx)
	return nil
}

func (b *CoinSentinelBot) runUpdate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := b.orchestrator.Run(ctx)
	if err != nil {
		b.log.Error("❌ Watchlist update failed", logger.String("run_id", summary.RunID), logger.Error(err))
		return
	}
	b.log.Debug("📊 Run summary", logger.String("summary", summary.String()), logger.Bool("ok", summary.OK))
}

func (b *CoinSentinelBot) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              b.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		b.log.Info("📈 Serving metrics", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("❌ Metrics server failed", logger.Error(err))
		}
	}()
	return srv
}

// listen consumes Telegram updates until ctx is done. Each command is handled
// on its own goroutine so a slow /watchlist does not block other chats.
func (b *CoinSentinelBot) listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.PollTimeout
	updates := b.telegramBot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.telegramBot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handle(ctx, msg)
			}()
		}
	}
}

func (b *CoinSentinelBot) handle(ctx context.Context, msg *tgbotapi.Message) {
	sub := watchlist.Subscriber(strconv.FormatInt(msg.Chat.ID, 10))
	command := msg.Command()

	b.log.Debug("💬 Command received", logger.String("command", command), logger.String("subscriber", string(sub)))

	text := dispatch(ctx, b.commands, sub, command, msg.CommandArguments())

	sendCtx, cancel := context.WithTimeout(ctx, b.cfg.Telegram.SendTimeout)
	defer cancel()
	if err := b.notifier.Send(sendCtx, sub, text); err != nil {
		b.log.Error("❌ Error sending reply",
			logger.String("command", command),
			logger.String("subscriber", string(sub)),
			logger.Error(err))
	}
}

// requester is the subset of *tgbotapi.BotAPI used for API calls without a
// message result.
type requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// registerCommands publishes the command menu shown by Telegram clients.
func registerCommands(bot requester) error {
	menu := commands.Menu()
	botCommands := make([]tgbotapi.BotCommand, 0, len(menu))
	for _, c := range menu {
		botCommands = append(botCommands, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}

	if _, err := bot.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}

// dispatch maps a bot command to its reply.
func dispatch(ctx context.Context, svc *commands.Service, sub watchlist.Subscriber, command, args string) string {
	switch command {
	case "track":
		return svc.Track(ctx, sub, args)
	case "untrack":
		return svc.Untrack(ctx, sub, args)
	case "watchlist":
		return svc.Watchlist(ctx, sub)
	case "sentiment":
		return svc.Sentiment(ctx, args)
	case "start", "help":
		return commands.Help()
	default:
		return "🤔 Unknown command.\n\n" + commands.Help()
	}
}

func (b *CoinSentinelBot) Close() {
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			b.log.Warn("⚠️ Error during shutdown", logger.Error(err))
		}
	}
}

// cronLogger routes cron's own logging through our logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("⏰ cron: "+msg, logger.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("❌ cron: "+msg, logger.Error(err), logger.Any("details", keysAndValues))
}
