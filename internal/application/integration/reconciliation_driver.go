package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/logger"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/telemetry"
)

const (
	// DefaultPageSize is the number of cards listed per page
	DefaultPageSize = 100
	// MaxWorkers bounds the per-run card worker pool
	MaxWorkers = 8
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DriverConfig holds paging, concurrency and pacing settings of a run
type DriverConfig struct {
	PageSize int
	// Workers is the card pool size; 1 processes cards inline in listing order
	Workers int
	// CardDelay is waited before every card detail fetch but the first
	CardDelay time.Duration
	// BatchPause is waited after every BatchSize cards
	BatchSize  int
	BatchPause time.Duration
}

// DefaultDriverConfig returns sequential, unpaced settings
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{PageSize: DefaultPageSize, Workers: 1}
}

func (c DriverConfig) normalized() DriverConfig {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	c.Workers = min(max(c.Workers, 1), MaxWorkers)
	if c.BatchSize < 0 {
		c.BatchSize = 0
	}
	return c
}

// ReconciliationDriver pages through the board's open cards and projects
// each onto its lead. The checkpoint only advances when the listing completed
// and every card reached an outcome.
type ReconciliationDriver struct {
	configs integration.SyncConfigRepository
	board   integration.CardSource
	leads   integration.LeadRepository
	syncer  CardSyncer
	config  DriverConfig
	sleep   Sleeper
	now     func() time.Time
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// DriverOption configures a ReconciliationDriver
type DriverOption func(*ReconciliationDriver)

// WithDriverSleeper replaces the pacing sleep, mainly for tests
func WithDriverSleeper(s Sleeper) DriverOption {
	return func(d *ReconciliationDriver) {
		d.sleep = s
	}
}

// WithDriverClock sets the time source for run timestamps and the checkpoint
func WithDriverClock(now func() time.Time) DriverOption {
	return func(d *ReconciliationDriver) {
		d.now = now
	}
}

// NewReconciliationDriver creates a driver
func NewReconciliationDriver(
	configs integration.SyncConfigRepository,
	board integration.CardSource,
	leads integration.LeadRepository,
	syncer CardSyncer,
	config DriverConfig,
	logger *zap.Logger,
	opts ...DriverOption,
) *ReconciliationDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ReconciliationDriver{
		configs: configs,
		board:   board,
		leads:   leads,
		syncer:  syncer,
		config:  config.normalized(),
		sleep:   sleepContext,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSyncMetrics sets the metrics collectors (optional)
func (d *ReconciliationDriver) SetSyncMetrics(m *telemetry.SyncMetrics) {
	d.metrics = m
}

// Run reconciles the tenant's board.
//
// Configuration problems return ErrFatalConfiguration and a nil summary
// before any card is touched. A failed listing page or a cancelled ctx abort
// the run: the summary is returned together with the error and the
// checkpoint is left as it was. Per-card failures are only counted.
func (d *ReconciliationDriver) Run(ctx context.Context, tenantID uuid.UUID, mode integration.RunMode) (*RunSummary, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", integration.ErrInvalidRunMode, mode)
	}
	cfg, err := d.loadConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	run := integration.NewSyncRun(tenantID, mode, d.now().UTC())
	ctx, log := logger.WithRunID(ctx, d.logger, run.ID.String())
	ctx, log = logger.WithTenantID(ctx, log, tenantID.String())

	var since *time.Time
	if mode == integration.RunModeIncremental && cfg.HasCheckpoint() {
		at := *cfg.LastSyncAt
		since = &at
	}

	ctx, span := telemetry.StartSpan(ctx, "boardsync.reconcile",
		telemetry.AttrTenantID, tenantID.String(),
		telemetry.AttrRunID, run.ID.String(),
		telemetry.AttrRunMode, mode,
		telemetry.AttrBoardID, cfg.BoardID,
	)
	defer span.End()

	d.metrics.RunStarted()
	log.Info("Reconciliation run started",
		zap.String("mode", mode.String()),
		zap.Bool("activity_filter", since != nil),
	)

	runErr := d.execute(ctx, run, cfg, since, span, log)
	summary := d.finish(ctx, run, cfg, since, runErr, log)

	telemetry.SetAttributes(span, telemetry.AttrOutcome, summary.State)
	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return summary, runErr
	}
	return summary, nil
}

func (d *ReconciliationDriver) loadConfig(ctx context.Context, tenantID uuid.UUID) (*integration.SyncConfiguration, error) {
	cfg, err := d.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, integration.ErrSyncConfigNotFound) {
			return nil, fmt.Errorf("%w: %w", integration.ErrFatalConfiguration, err)
		}
		return nil, fmt.Errorf("load sync configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// execute lists every page and waits for all card work. It returns nil only
// when the run may be checkpointed.
func (d *ReconciliationDriver) execute(
	ctx context.Context,
	run *integration.SyncRun,
	cfg *integration.SyncConfiguration,
	since *time.Time,
	span trace.Span,
	log *zap.Logger,
) error {
	pool := d.newCardPool(ctx, run, cfg, log)
	listErr := d.listAll(ctx, run, cfg, since, pool, span, log)
	pool.wait()

	if listErr != nil {
		return fmt.Errorf("%w: %w", integration.ErrRunAborted, listErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", integration.ErrRunAborted, err)
	}
	return nil
}

func (d *ReconciliationDriver) listAll(
	ctx context.Context,
	run *integration.SyncRun,
	cfg *integration.SyncConfiguration,
	since *time.Time,
	pool *cardPool,
	span trace.Span,
	log *zap.Logger,
) error {
	cursor := ""
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.transition(run, integration.RunStateFetchingPage, log)

		cards, err := d.board.ListOpenCards(ctx, cfg, integration.ListCardsQuery{
			Before: cursor,
			Limit:  d.config.PageSize,
		})
		if err != nil {
			log.Error("Listing page failed, aborting run",
				zap.Int("page", page),
				zap.String("before", cursor),
				zap.Error(err),
			)
			return fmt.Errorf("list page %d: %w", page, err)
		}
		run.RecordFetched(len(cards))
		telemetry.AddEvent(span, "page.fetched",
			telemetry.AttrPageCursor, cursor,
			telemetry.AttrPageSize, len(cards),
		)
		log.Debug("Fetched page", zap.Int("page", page), zap.Int("cards", len(cards)))

		d.transition(run, integration.RunStateDeduping, log)
		for i := range cards {
			card := cards[i]
			if card.ID == "" {
				run.RecordError()
				d.metrics.CardProcessed(telemetry.CardErrored)
				log.Warn("Listed card has no identifier", zap.Int("page", page))
				continue
			}
			if !run.MarkSeen(card.ID) {
				d.metrics.CardProcessed(telemetry.CardSkipped)
				continue
			}
			if !activeSince(&card, since) {
				run.RecordSkipped()
				d.metrics.CardProcessed(telemetry.CardSkipped)
				continue
			}
			if err := pool.submit(ctx, card.ID); err != nil {
				return err
			}
		}

		if len(cards) < d.config.PageSize {
			return nil
		}
		last := cards[len(cards)-1].ID
		if last == "" || last == cursor {
			log.Warn("Listing cursor did not advance, stopping", zap.String("before", cursor))
			return nil
		}
		cursor = last
	}
}

// activeSince reports whether the card changed after the checkpoint. The
// board's since filter matches creation time, so activity is compared here.
// Cards without an activity date are always synced.
func activeSince(card *integration.ExternalCard, since *time.Time) bool {
	if since == nil || card.LastActivity == nil {
		return true
	}
	return card.LastActivity.After(*since)
}

func (d *ReconciliationDriver) finish(
	ctx context.Context,
	run *integration.SyncRun,
	cfg *integration.SyncConfiguration,
	since *time.Time,
	runErr error,
	log *zap.Logger,
) *RunSummary {
	summary := &RunSummary{
		RunID:      run.ID,
		TenantID:   run.TenantID,
		Mode:       run.Mode,
		Since:      since,
		StartedAt:  run.StartedAt,
		Checkpoint: cfg.LastSyncAt,
	}

	if runErr == nil {
		d.transition(run, integration.RunStateCheckpointing, log)
		finishedAt := d.now().UTC()
		if err := d.configs.UpdateCheckpoint(ctx, run.TenantID, finishedAt); err != nil {
			log.Error("Failed to store checkpoint", zap.Error(err))
			runErr = fmt.Errorf("%w: store checkpoint: %w", integration.ErrRunAborted, err)
		} else {
			summary.Checkpoint = &finishedAt
			summary.CheckpointAdvanced = true
			d.metrics.CheckpointCommitted(run.TenantID.String(), finishedAt)
			d.transition(run, integration.RunStateDone, log)
		}
	}
	if runErr != nil {
		d.transition(run, integration.RunStateAborted, log)
		summary.Error = runErr.Error()
	}

	summary.FinishedAt = d.now().UTC()
	summary.Elapsed = summary.FinishedAt.Sub(summary.StartedAt)
	summary.ElapsedMs = summary.Elapsed.Milliseconds()
	summary.State = run.State()
	summary.Counters = run.Counters()

	d.metrics.RunFinished(run.Mode.String(), summary.State.String(), summary.Elapsed)
	fields := []zap.Field{
		zap.String("state", summary.State.String()),
		zap.Int("fetched", summary.Counters.Fetched),
		zap.Int("created", summary.Counters.Created),
		zap.Int("updated", summary.Counters.Updated),
		zap.Int("skipped", summary.Counters.Skipped),
		zap.Int("errored", summary.Counters.Errored),
		zap.Int("deleted", summary.Counters.Deleted),
		zap.Duration("elapsed", summary.Elapsed),
		zap.Bool("checkpoint_advanced", summary.CheckpointAdvanced),
	}
	if runErr != nil {
		log.Warn("Reconciliation run aborted", append(fields, zap.Error(runErr))...)
	} else {
		log.Info("Reconciliation run completed", fields...)
	}
	return summary
}

// transition moves the run's state. Workers race with the lister, so a
// rejected move is logged rather than treated as a failure.
func (d *ReconciliationDriver) transition(run *integration.SyncRun, next integration.RunState, log *zap.Logger) {
	if err := run.Transition(next); err != nil {
		log.Debug("Run state transition skipped", zap.Error(err))
	}
}

// processCard fetches the card detail and syncs it. Errors are counted and
// never stop the run.
func (d *ReconciliationDriver) processCard(ctx context.Context, run *integration.SyncRun, cfg *integration.SyncConfiguration, cardID string, log *zap.Logger) {
	d.transition(run, integration.RunStateSyncingCard, log)
	log = log.With(zap.String("card_id", cardID))

	card, err := d.board.GetCard(ctx, cfg, cardID)
	if errors.Is(err, integration.ErrCardNotFound) {
		if _, delErr := d.leads.DeleteByExternalID(ctx, cfg.TenantID, cardID); delErr != nil {
			d.recordCardError(run, log, fmt.Errorf("delete lead of missing card: %w", delErr))
			return
		}
		run.RecordDeleted()
		d.metrics.CardProcessed(telemetry.CardDeleted)
		log.Info("Card no longer on board, lead deleted")
		return
	}
	if err != nil {
		d.recordCardError(run, log, fmt.Errorf("fetch card: %w", err))
		return
	}

	outcome, err := d.syncer.Sync(ctx, cfg, card)
	if err != nil {
		d.recordCardError(run, log, err)
		return
	}
	run.RecordSynced(outcome.Created)
	if outcome.Created {
		d.metrics.CardProcessed(telemetry.CardCreated)
	} else {
		d.metrics.CardProcessed(telemetry.CardUpdated)
	}
}

func (d *ReconciliationDriver) recordCardError(run *integration.SyncRun, log *zap.Logger, err error) {
	run.RecordError()
	d.transition(run, integration.RunStateErrorRecorded, log)
	d.metrics.CardProcessed(telemetry.CardErrored)
	log.Warn("Card sync failed", zap.Error(err))
}

// ---------------------------------------------------------------------------
// Card pool
// ---------------------------------------------------------------------------

// cardPool runs card work inline (one worker) or on a bounded set of
// goroutines, pacing detail fetches across all of them.
type cardPool struct {
	driver *ReconciliationDriver
	ctx    context.Context
	run    *integration.SyncRun
	cfg    *integration.SyncConfiguration
	log    *zap.Logger

	jobs chan string
	wg   sync.WaitGroup

	paceMu     sync.Mutex
	dispatched int
}

func (d *ReconciliationDriver) newCardPool(ctx context.Context, run *integration.SyncRun, cfg *integration.SyncConfiguration, log *zap.Logger) *cardPool {
	p := &cardPool{driver: d, ctx: ctx, run: run, cfg: cfg, log: log}
	if d.config.Workers == 1 {
		return p
	}
	p.jobs = make(chan string)
	for i := 0; i < d.config.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for cardID := range p.jobs {
				p.handle(cardID)
			}
		}()
	}
	return p
}

// submit hands a card to the pool, blocking while every worker is busy
func (p *cardPool) submit(ctx context.Context, cardID string) error {
	if p.jobs == nil {
		p.handle(cardID)
		return ctx.Err()
	}
	select {
	case p.jobs <- cardID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *cardPool) handle(cardID string) {
	if err := p.pace(); err != nil {
		return
	}
	p.driver.processCard(p.ctx, p.run, p.cfg, cardID, p.log)
}

// pace applies CardDelay before every fetch but the first and BatchPause
// after every BatchSize fetches.
func (p *cardPool) pace() error {
	cfg := p.driver.config
	p.paceMu.Lock()
	n := p.dispatched
	p.dispatched++
	p.paceMu.Unlock()

	if n == 0 {
		return p.ctx.Err()
	}
	wait := cfg.CardDelay
	if cfg.BatchSize > 0 && n%cfg.BatchSize == 0 {
		wait += cfg.BatchPause
	}
	if wait <= 0 {
		return p.ctx.Err()
	}
	return p.driver.sleep(p.ctx, wait)
}

func (p *cardPool) wait() {
	if p.jobs != nil {
		close(p.jobs)
	}
	p.wg.Wait()
}
