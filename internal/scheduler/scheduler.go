// Package scheduler runs the recurring per-workspace monitoring ticks.
//
// Each active workspace owns exactly one cron entry. A tick re-reads the
// workspace settings and phrases, searches every phrase, and delivers posts
// that are in the recency window and not yet recorded as notified. A separate
// daily job prunes old notification records.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"lead_bot/internal/filter"
	"lead_bot/internal/model"
	"lead_bot/internal/storage"
)

// Searcher finds posts matching a phrase.
type Searcher interface {
	Search(ctx context.Context, phrase string, window model.Window) ([]model.Post, error)
}

// Deliverer sends a notification to a chat channel.
type Deliverer interface {
	Deliver(ctx context.Context, channelID int64, n model.Notification) error
}

// LeadSink mirrors delivered posts to an external tracker.
type LeadSink interface {
	AppendLead(ctx context.Context, post model.Post, phrase string) error
}

// StartResult reports the outcome of Start.
type StartResult int

const (
	Started StartResult = iota
	AlreadyActive
)

func (r StartResult) String() string {
	if r == AlreadyActive {
		return "already active"
	}
	return "started"
}

// StopResult reports the outcome of Stop.
type StopResult int

const (
	WasActive StopResult = iota
	NotActive
)

func (r StopResult) String() string {
	if r == NotActive {
		return "not active"
	}
	return "stopped"
}

// DeliveryResult describes one delivery attempt within a tick.
type DeliveryResult struct {
	PostID   string
	Phrase   string
	Err      error
	SheetErr error
}

// TickReport summarises one tick of one workspace.
type TickReport struct {
	ID          uuid.UUID
	WorkspaceID int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Phrases     int
	Candidates  int
	Delivered   int
	Skipped     int
	Deliveries  []DeliveryResult
	Errors      []error
	SelfStopped bool
}

// Options configures a Scheduler. Zero fields take defaults.
type Options struct {
	// Schedule is the cron spec for workspace ticks.
	Schedule string
	// CleanupSchedule is the cron spec for the retention sweep.
	CleanupSchedule string
	Retention       time.Duration
	// Pause is the delay after each delivered post.
	Pause time.Duration
}

const (
	DefaultSchedule        = "*/5 * * * *"
	DefaultCleanupSchedule = "0 2 * * *"
	DefaultRetention       = 30 * 24 * time.Hour
	DefaultPause           = time.Second
)

func (o *Options) setDefaults() {
	if o.Schedule == "" {
		o.Schedule = DefaultSchedule
	}
	if o.CleanupSchedule == "" {
		o.CleanupSchedule = DefaultCleanupSchedule
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.Pause < 0 {
		o.Pause = 0
	}
}

// Scheduler owns the workspace handle map.
type Scheduler struct {
	store     storage.Storage
	searcher  Searcher
	deliverer Deliverer
	leads     LeadSink
	log       *slog.Logger
	opts      Options

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	handles map[int64]cron.EntryID
	reports map[int64]TickReport
}

// New creates a Scheduler and registers the retention sweep.
// leads may be nil. Call Run to start firing jobs.
func New(store storage.Storage, searcher Searcher, deliverer Deliverer, leads LeadSink, log *slog.Logger, opts Options) (*Scheduler, error) {
	opts.setDefaults()
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, fmt.Errorf("parse monitor schedule %q: %w", opts.Schedule, err)
	}

	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		store:     store,
		searcher:  searcher,
		deliverer: deliverer,
		leads:     leads,
		log:       log,
		opts:      opts,
		cron:      c,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		sleep:     sleep,
		handles:   make(map[int64]cron.EntryID),
		reports:   make(map[int64]TickReport),
	}

	if _, err := c.AddFunc(opts.CleanupSchedule, s.sweep); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule retention sweep %q: %w", opts.CleanupSchedule, err)
	}
	return s, nil
}

// Run fires scheduled jobs until ctx is cancelled, then closes the scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started", "schedule", s.opts.Schedule, "cleanup", s.opts.CleanupSchedule)
	<-ctx.Done()
	s.Close()
}

// Close stops the cron and waits for running jobs to return.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.cron.Stop().Done()
		s.log.Info("scheduler stopped")
	})
}

// Start registers a recurring tick for the workspace.
func (s *Scheduler) Start(workspaceID int64) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[workspaceID]; ok {
		return AlreadyActive, nil
	}
	id, err := s.cron.AddFunc(s.opts.Schedule, func() { s.Tick(s.ctx, workspaceID) })
	if err != nil {
		return Started, fmt.Errorf("schedule workspace %d: %w", workspaceID, err)
	}
	s.handles[workspaceID] = id
	s.log.Info("monitoring started", "workspace_id", workspaceID)
	return Started, nil
}

// Stop cancels future ticks for the workspace. A tick already running completes.
func (s *Scheduler) Stop(workspaceID int64) StopResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.handles[workspaceID]
	if !ok {
		return NotActive
	}
	s.cron.Remove(id)
	delete(s.handles, workspaceID)
	s.log.Info("monitoring stopped", "workspace_id", workspaceID)
	return WasActive
}

// Active reports whether the workspace has a handle.
func (s *Scheduler) Active(workspaceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[workspaceID]
	return ok
}

// ActiveWorkspaces returns the IDs of all active workspaces in ascending order.
func (s *Scheduler) ActiveWorkspaces() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.handles))
}

// NextRun returns when the workspace ticks next. It is zero until Run starts the cron.
func (s *Scheduler) NextRun(workspaceID int64) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.handles[workspaceID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// LastReport returns the report of the most recent finished tick.
func (s *Scheduler) LastReport(workspaceID int64) (TickReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[workspaceID]
	return r, ok
}

// StartAll starts monitoring for every stored workspace and returns how many
// were newly started.
func (s *Scheduler) StartAll(ctx context.Context) (int, error) {
	workspaces, err := s.store.ListWorkspaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("list workspaces: %w", err)
	}
	started := 0
	for _, ws := range workspaces {
		res, err := s.Start(ws.ID)
		if err != nil {
			return started, err
		}
		if res == Started {
			started++
		}
	}
	return started, nil
}

// RunOnce searches a phrase directly, without recency filtering or deduplication.
func (s *Scheduler) RunOnce(ctx context.Context, phrase string, window model.Window) ([]model.Post, error) {
	posts, err := s.searcher.Search(ctx, phrase, window)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", phrase, err)
	}
	return posts, nil
}

// Prune deletes notification records older than the retention period.
func (s *Scheduler) Prune(ctx context.Context) (int64, error) {
	n, err := s.store.PruneNotified(ctx, s.now().Add(-s.opts.Retention))
	if err != nil {
		return 0, fmt.Errorf("prune notified: %w", err)
	}
	return n, nil
}

func (s *Scheduler) sweep() {
	n, err := s.Prune(s.ctx)
	if err != nil {
		s.log.Error("retention sweep", "error", err)
		return
	}
	s.log.Info("retention sweep done", "deleted", n)
}

// Tick runs one monitoring pass for the workspace.
func (s *Scheduler) Tick(ctx context.Context, workspaceID int64) (rep TickReport) {
	rep = TickReport{ID: uuid.New(), WorkspaceID: workspaceID, StartedAt: s.now()}
	log := s.log.With("workspace_id", workspaceID, "tick_id", rep.ID)

	defer func() {
		rep.FinishedAt = s.now()
		s.mu.Lock()
		s.reports[workspaceID] = rep
		s.mu.Unlock()
		log.Info("tick done",
			"phrases", rep.Phrases,
			"candidates", rep.Candidates,
			"delivered", rep.Delivered,
			"skipped", rep.Skipped,
			"errors", len(rep.Errors),
		)
	}()

	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("workspace has no settings, stopping")
		s.Stop(workspaceID)
		rep.SelfStopped = true
		return rep
	}
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Errorf("get workspace: %w", err))
		return rep
	}

	phrases, err := s.store.ListPhrases(ctx, workspaceID)
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Errorf("list phrases: %w", err))
		return rep
	}
	if len(phrases) == 0 {
		log.Warn("workspace has no phrases, stopping")
		s.Stop(workspaceID)
		rep.SelfStopped = true
		return rep
	}
	rep.Phrases = len(phrases)

	for _, p := range phrases {
		if err := ctx.Err(); err != nil {
			rep.Errors = append(rep.Errors, err)
			return rep
		}

		posts, err := s.searcher.Search(ctx, p.Text, ws.Window)
		if err != nil {
			log.Error("search phrase", "phrase", p.Text, "error", err)
			rep.Errors = append(rep.Errors, fmt.Errorf("search %q: %w", p.Text, err))
			continue
		}
		rep.Candidates += len(posts)

		for _, post := range posts {
			if !filter.InWindow(post, ws.Window, s.now()) {
				rep.Skipped++
				continue
			}
			if !s.notify(ctx, log, ws, p.Text, post, &rep) {
				continue
			}
			if err := s.sleep(ctx, s.opts.Pause); err != nil {
				rep.Errors = append(rep.Errors, err)
				return rep
			}
		}
	}
	return rep
}

// notify claims, delivers and mirrors one post. It reports whether a chat
// message was sent.
func (s *Scheduler) notify(ctx context.Context, log *slog.Logger, ws *model.Workspace, phrase string, post model.Post, rep *TickReport) bool {
	seen, err := s.store.IsNotified(ctx, ws.ID, post.ID)
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Errorf("check notified %s: %w", post.ID, err))
		return false
	}
	if seen {
		rep.Skipped++
		return false
	}

	rec := &model.NotifiedPost{
		WorkspaceID: ws.ID,
		PostID:      post.ID,
		Phrase:      phrase,
		Title:       post.Title,
		URL:         post.URL,
		Subreddit:   post.Subreddit,
	}
	if err := s.store.RecordNotified(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			rep.Skipped++
			return false
		}
		rep.Errors = append(rep.Errors, fmt.Errorf("record notified %s: %w", post.ID, err))
		return false
	}

	res := DeliveryResult{PostID: post.ID, Phrase: phrase}
	if err := s.deliverer.Deliver(ctx, ws.ChannelID, model.Notification{Post: post, Phrase: phrase}); err != nil {
		log.Error("deliver post", "post_id", post.ID, "channel_id", ws.ChannelID, "error", err)
		res.Err = err
		if ferr := s.store.ForgetNotified(context.WithoutCancel(ctx), ws.ID, post.ID); ferr != nil {
			log.Error("release notified claim", "post_id", post.ID, "error", ferr)
		}
		rep.Deliveries = append(rep.Deliveries, res)
		return false
	}
	rep.Delivered++
	log.Info("post delivered", "post_id", post.ID, "phrase", phrase, "channel_id", ws.ChannelID)

	if s.leads != nil {
		if err := s.leads.AppendLead(ctx, post, phrase); err != nil {
			log.Warn("mirror lead", "post_id", post.ID, "error", err)
			res.SheetErr = err
		}
	}
	rep.Deliveries = append(rep.Deliveries, res)
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
