package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"coinsentinel/internal/analyzer"
	"coinsentinel/internal/logger"
	"coinsentinel/internal/prices"
	"coinsentinel/internal/watchlist"
)

// ErrStoreUnavailable is returned by Run when the watchlist snapshot fails.
var ErrStoreUnavailable = watchlist.ErrStoreUnavailable

// Sentiment returns a free-text verdict for one coin.
type Sentiment interface {
	Analyze(ctx context.Context, coin string) (string, error)
}

// Prices quotes a batch of coins. It never fails; missing coins are absent.
type Prices interface {
	Quote(ctx context.Context, coins []string) map[string]prices.Quote
}

type Notifier interface {
	Send(ctx context.Context, sub watchlist.Subscriber, text string) error
}

type Metrics interface {
	RecordRun(ok bool, subscribers int, d time.Duration)
	RecordDelivery(outcome string)
	RecordSentiment(ok bool)
}

type Deps struct {
	Store     watchlist.Store
	Sentiment Sentiment
	Prices    Prices
	Notifier  Notifier
	Metrics   Metrics        // optional
	Logger    *logger.Logger // optional
}

type Options struct {
	Concurrency      int
	RunTimeout       time.Duration
	SentimentTimeout time.Duration
	PriceTimeout     time.Duration
	SendTimeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		Concurrency:      4,
		RunTimeout:       10 * time.Minute,
		SentimentTimeout: 45 * time.Second,
		PriceTimeout:     10 * time.Second,
		SendTimeout:      10 * time.Second,
	}
}

// Summary is the observable outcome of a run. TimedOut counts the subset of
// Skipped that never started because the run deadline passed.
type Summary struct {
	RunID       string
	Subscribers int
	Coins       int
	Notified    int
	Failed      int
	Skipped     int
	TimedOut    int
	Duration    time.Duration
	OK          bool
}

func (s Summary) String() string {
	return fmt.Sprintf("notified=%d failed=%d skipped=%d (timeout=%d) subscribers=%d coins=%d in %s",
		s.Notified, s.Failed, s.Skipped, s.TimedOut, s.Subscribers, s.Coins, s.Duration.Round(time.Millisecond))
}

// Orchestrator builds and delivers aggregated watchlist updates. It only
// reads from the store.
type Orchestrator struct {
	store     watchlist.Store
	sentiment Sentiment
	prices    Prices
	notifier  Notifier
	metrics   Metrics
	log       *logger.Logger
	opts      Options
}

func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = def.RunTimeout
	}
	if opts.SentimentTimeout <= 0 {
		opts.SentimentTimeout = def.SentimentTimeout
	}
	if opts.PriceTimeout <= 0 {
		opts.PriceTimeout = def.PriceTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = def.SendTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	return &Orchestrator{
		store:     deps.Store,
		sentiment: deps.Sentiment,
		prices:    deps.Prices,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		log:       deps.Logger,
		opts:      opts,
	}
}

// Run sends one aggregated update to every subscriber. The returned error is
// non-nil only when the run as a whole failed (store snapshot); per-subscriber
// failures are counted in the Summary.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	began := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	log := o.log.With(logger.String("run_id", summary.RunID))

	runCtx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	snap, err := o.store.ListAll(runCtx)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		summary.Duration = time.Since(began)
		o.metrics.RecordRun(false, 0, summary.Duration)
		log.Error("❌ Watchlist snapshot failed, aborting run", logger.Error(err))
		return summary, fmt.Errorf("snapshot watchlists: %w", err)
	}

	coins := snap.Coins()
	summary.Subscribers = len(snap)
	summary.Coins = len(coins)
	log.Info("🔄 Starting watchlist update",
		logger.Int("subscribers", summary.Subscribers),
		logger.Int("coins", summary.Coins))

	o.deliver(runCtx, log, snap, o.start(runCtx, coins), &summary)

	summary.OK = true
	summary.Duration = time.Since(began)
	o.metrics.RecordRun(true, summary.Subscribers, summary.Duration)
	log.Info("✅ Watchlist update finished",
		logger.Int("notified", summary.Notified),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
		logger.Int("timed_out", summary.TimedOut),
		logger.Duration("duration", summary.Duration))

	return summary, nil
}

// Aggregate renders the update for a single subscriber without sending it.
// An empty watchlist yields an empty string.
func (o *Orchestrator) Aggregate(ctx context.Context, sub watchlist.Subscriber) (string, error) {
	coins, err := o.store.ListCoins(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("list coins for %s: %w", sub, err)
	}
	if len(coins) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	lines, ok := o.start(ctx, coins).lines(ctx, coins)
	if !ok {
		return "", fmt.Errorf("aggregate %s: %w", sub, ctx.Err())
	}
	return Render(coins, lines), nil
}

type sentimentResult struct {
	text string
	err  error
}

// coinResult is written once by the sentiment pool; done is closed after res
// is set and res is read-only from then on.
type coinResult struct {
	done chan struct{}
	res  sentimentResult
}

// pipeline holds the per-run provider results. Readers wait only on the
// coins they need.
type pipeline struct {
	quotesDone chan struct{}
	quotes     map[string]prices.Quote
	coins      map[string]*coinResult
}

// start issues one batched quote and one sentiment call per coin without
// waiting for either. Every result is published before ctx expires, even when
// a provider ignores its context.
func (o *Orchestrator) start(ctx context.Context, coins []string) *pipeline {
	p := &pipeline{
		quotesDone: make(chan struct{}),
		coins:      make(map[string]*coinResult, len(coins)),
	}
	for _, coin := range coins {
		p.coins[coin] = &coinResult{done: make(chan struct{})}
	}

	go func() {
		p.quotes = o.quote(ctx, coins)
		close(p.quotesDone)
	}()

	go func() {
		var g errgroup.Group
		g.SetLimit(o.opts.Concurrency)
		for _, coin := range coins {
			coin := coin
			r := p.coins[coin]
			g.Go(func() error {
				r.res = o.sentimentFor(ctx, coin)
				close(r.done)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return p
}

// lines waits for the given coins and builds their lines. It reports false
// when ctx ends first.
func (p *pipeline) lines(ctx context.Context, coins []string) (map[string]Line, bool) {
	select {
	case <-p.quotesDone:
	case <-ctx.Done():
		return nil, false
	}

	lines := make(map[string]Line, len(coins))
	for _, coin := range coins {
		r, ok := p.coins[coin]
		if !ok {
			lines[coin] = Line{Coin: coin}
			continue
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, false
		}

		line := Line{Coin: coin}
		if r.res.err == nil {
			line.Sentiment = r.res.text
			line.Verdict = analyzer.Classify(r.res.text)
			line.SentimentOK = true
		}
		if q, ok := p.quotes[coin]; ok {
			line.Price = q.Price
			line.Change24h = q.Change24h
			line.HasPrice = true
		}
		lines[coin] = line
	}
	return lines, true
}

func (o *Orchestrator) quote(ctx context.Context, coins []string) map[string]prices.Quote {
	qctx, cancel := context.WithTimeout(ctx, o.opts.PriceTimeout)
	defer cancel()

	done := make(chan map[string]prices.Quote, 1)
	go func() {
		done <- o.prices.Quote(qctx, coins)
	}()

	select {
	case quotes := <-done:
		return quotes
	case <-qctx.Done():
		o.log.Warn("⚠️ Price quote timed out", logger.Int("coins", len(coins)), logger.Error(qctx.Err()))
		return map[string]prices.Quote{}
	}
}

func (o *Orchestrator) sentimentFor(ctx context.Context, coin string) sentimentResult {
	if err := ctx.Err(); err != nil {
		o.metrics.RecordSentiment(false)
		return sentimentResult{err: err}
	}

	sctx, cancel := context.WithTimeout(ctx, o.opts.SentimentTimeout)
	defer cancel()

	done := make(chan sentimentResult, 1)
	go func() {
		text, err := o.sentiment.Analyze(sctx, coin)
		done <- sentimentResult{text: text, err: err}
	}()

	var res sentimentResult
	select {
	case res = <-done:
		if res.err == nil && sctx.Err() != nil {
			res = sentimentResult{err: sctx.Err()}
		}
	case <-sctx.Done():
		res = sentimentResult{err: sctx.Err()}
	}

	o.metrics.RecordSentiment(res.err == nil)
	if res.err != nil {
		o.log.Warn("⚠️ Sentiment unavailable", logger.String("coin", coin), logger.Error(res.err))
	}
	return res
}

type counters struct {
	mu sync.Mutex
	s  *Summary
}

func (c *counters) add(f func(s *Summary)) {
	c.mu.Lock()
	f(c.s)
	c.mu.Unlock()
}

// deliver renders and sends one message per subscriber. Each subscriber waits
// only for its own coins; sends share a semaphore of width Concurrency.
func (o *Orchestrator) deliver(ctx context.Context, log *logger.Logger, snap watchlist.Snapshot, p *pipeline, summary *Summary) {
	subs := make([]watchlist.Subscriber, 0, len(snap))
	for sub := range snap {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i] < subs[j] })

	c := &counters{s: summary}
	timedOut := func(sub watchlist.Subscriber) {
		c.add(func(s *Summary) { s.Skipped++; s.TimedOut++ })
		o.metrics.RecordDelivery("timeout")
		log.Warn("⏰ Run deadline reached, subscriber skipped", logger.String("subscriber", string(sub)))
	}

	sem := semaphore.NewWeighted(int64(o.opts.Concurrency))
	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		coins := snap[sub]
		if len(coins) == 0 {
			c.add(func(s *Summary) { s.Skipped++ })
			o.metrics.RecordDelivery("skipped")
			continue
		}

		g.Go(func() error {
			lines, ok := p.lines(ctx, coins)
			if !ok {
				timedOut(sub)
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				timedOut(sub)
				return nil
			}
			defer sem.Release(1)
			// Acquire may succeed on an expired context.
			if ctx.Err() != nil {
				timedOut(sub)
				return nil
			}

			body := Render(coins, lines)

			sendCtx, cancel := context.WithTimeout(ctx, o.opts.SendTimeout)
			defer cancel()

			if err := o.notifier.Send(sendCtx, sub, body); err != nil {
				c.add(func(s *Summary) { s.Failed++ })
				o.metrics.RecordDelivery("failed")
				log.Error("❌ Delivery failed", logger.String("subscriber", string(sub)), logger.Error(err))
				return nil
			}

			c.add(func(s *Summary) { s.Notified++ })
			o.metrics.RecordDelivery("sent")
			log.Debug("📨 Update delivered", logger.String("subscriber", string(sub)), logger.Int("coins", len(coins)))
			return nil
		})
	}
	_ = g.Wait()
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(bool, int, time.Duration) {}
func (nopMetrics) RecordDelivery(string)              {}
func (nopMetrics) RecordSentiment(bool)               {}
