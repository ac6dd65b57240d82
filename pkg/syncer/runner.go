package syncer

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlistings/mlsync/internal/adapters"
	"github.com/openlistings/mlsync/pkg/constants"
	pkgerrors "github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/logging"
)

// session is one execution of a run's loop. A paused run that resumes
// gets a fresh session; stop requests and completion signals belong to
// the session, not the run.
type session struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSession() *session {
	return &session{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// requestStop asks the loop to let go at its next safe point.
func (s *session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// runner owns one SyncRun. Only its loop goroutine mutates the run;
// everything else reads Snapshot copies under the mutex.
type runner struct {
	syncer  *Syncer
	cfg     listings.ProviderConfig
	adapter adapters.Adapter
	since   *time.Time

	mu   sync.Mutex
	run  listings.SyncRun
	sess *session
	page int

	// recent is the duplicate-detection window: catalog records loaded at
	// session start, then the latest ingested records. Touched only by
	// the goroutine executing the run.
	recent []listings.Property
}

func newRunner(s *Syncer, cfg listings.ProviderConfig, adapter adapters.Adapter, run listings.SyncRun, since *time.Time) *runner {
	return &runner{
		syncer:  s,
		cfg:     cfg,
		adapter: adapter,
		run:     run,
		since:   since,
		page:    1,
	}
}

// begin launches a new loop session. Callers must have the run in
// RunStatusRunning first.
func (r *runner) begin(ctx context.Context) {
	sess := newSession()
	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()
	go r.loop(ctx, sess)
}

func (r *runner) session() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess
}

func (r *runner) runID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.ID
}

func (r *runner) status() listings.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Status
}

func (r *runner) snapshot() listings.SyncRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Snapshot()
}

func (r *runner) options() listings.SyncOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Options
}

func (r *runner) startedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.StartedAt
}

func (r *runner) nextPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

func (r *runner) log(ctx context.Context) *zerolog.Logger {
	ctx = logging.WithProvider(ctx, string(r.cfg.ID))
	ctx = logging.WithRun(ctx, r.runID())
	return logging.FromContext(ctx)
}

// transition moves the run's status, enforcing the state machine. A
// terminal status stamps EndedAt; completion pins progress to 100.
// Illegal transitions are refused, which is what makes terminal states
// set-exactly-once.
func (r *runner) transition(to listings.RunStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !listings.CanTransition(r.run.Status, to) {
		return false
	}
	r.run.Status = to
	if to == listings.RunStatusCompleted {
		r.run.Progress = 100
	}
	if to.Terminal() {
		t := r.syncer.now().UTC()
		r.run.EndedAt = &t
	}
	return true
}

// loop drives the run: fetch page → validate → detect duplicates →
// persist → advance, until the feed ends, the record cap is reached,
// retries exhaust, or a stop request or context cancellation pauses it.
func (r *runner) loop(ctx context.Context, sess *session) {
	ctx = logging.WithProvider(ctx, string(r.cfg.ID))
	ctx = logging.WithRun(ctx, r.runID())
	log := logging.FromContext(ctx)

	defer func() {
		r.mu.Lock()
		if r.sess == sess {
			r.sess = nil
		}
		r.mu.Unlock()
		r.syncer.release(r)
		// Notify after release so an observer reacting to a terminal run
		// can start the provider's next run without hitting a conflict.
		if r.status().Terminal() {
			r.syncer.notifyTerminal(r)
		}
		close(sess.done)
	}()

	if err := r.adapter.Authenticate(ctx); err != nil {
		r.fail(ctx, err)
		return
	}

	opts := r.options()
	size := adapters.ClampPageSize(r.cfg.PageSize)

	if !opts.SkipDuplicates {
		r.seedWindow(ctx)
	}

	for {
		if ctx.Err() != nil || sess.stopped() {
			r.pause(ctx)
			return
		}

		number := r.nextPage()
		page, err := r.fetchPage(ctx, sess, number, size)
		if err != nil {
			if ctx.Err() != nil || sess.stopped() {
				r.pause(ctx)
				return
			}
			r.fail(ctx, err)
			return
		}
		if ctx.Err() != nil {
			// The in-flight fetch was allowed to finish, but nothing from
			// this page is written yet; resuming refetches it.
			r.pause(ctx)
			return
		}

		ingested := r.processPage(ctx, page, opts)
		if !opts.SkipDuplicates {
			r.detectDuplicates(ctx, ingested)
		}
		r.advance(page, ingested)

		log.Debug().
			Int("page", page.Number).
			Int("records", len(page.Records)).
			Int("ingested", len(ingested)).
			Msg("page processed")

		if !page.HasMore || r.capReached(opts) {
			r.complete(ctx)
			return
		}
	}
}

// fetchPage fetches one page, retrying retryable failures with
// exponential backoff bounded by the provider's MaxRetries. The attempt
// count covers the initial try: MaxRetries of 3 means three failed
// fetches fail the page.
func (r *runner) fetchPage(ctx context.Context, sess *session, number, size int) (adapters.Page, error) {
	req := adapters.PageRequest{Number: number, Size: size, ModifiedSince: r.since}

	maxAttempts := r.cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = constants.MaxRetries
	}

	log := logging.FromContext(ctx)
	for attempt := 1; ; attempt++ {
		page, err := r.adapter.FetchPage(ctx, req)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil || sess.stopped() {
			return adapters.Page{}, err
		}
		if category := pkgerrors.Classify(err); !category.Retryable() {
			return adapters.Page{}, err
		}
		if attempt >= maxAttempts {
			return adapters.Page{}, fmt.Errorf("page %d: %d attempts exhausted: %w", number, attempt, err)
		}

		delay := retryDelay(attempt)
		if limit := r.adapter.RateLimit(); limit.Exhausted() {
			if until := time.Until(limit.ResetAt); until > delay {
				delay = until
			}
		}
		log.Warn().
			Err(err).
			Int("page", number).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("page fetch failed, backing off")

		select {
		case <-time.After(delay):
		case <-sess.stop:
			return adapters.Page{}, pkgerrors.ErrCanceled
		case <-ctx.Done():
			return adapters.Page{}, ctx.Err()
		}
	}
}

// retryDelay doubles the base backoff per attempt, capped.
func retryDelay(attempt int) time.Duration {
	if attempt > 10 {
		return constants.MaxRetryBackoff
	}
	delay := constants.RetryBackoff << (attempt - 1)
	if delay > constants.MaxRetryBackoff {
		delay = constants.MaxRetryBackoff
	}
	return delay
}

// processPage filters, validates, and persists one page of records,
// returning the records that made it into the catalog. Record-scoped
// failures are counted and recorded, never propagated: one bad record
// must not abort the run.
func (r *runner) processPage(ctx context.Context, page adapters.Page, opts listings.SyncOptions) []listings.Property {
	for _, issue := range page.Issues {
		r.recordError(ctx, issueError(issue))
		r.bump(func(c *listings.RunCounters) { c.Processed++; c.Failed++ })
	}

	ingested := make([]listings.Property, 0, len(page.Records))
	for i := range page.Records {
		record := page.Records[i]
		if !opts.Admits(record) {
			continue
		}
		if r.capReached(opts) {
			break
		}

		if opts.ValidateData {
			score := r.syncer.validator.Validate(record)
			if floor := r.cfg.QualityFloor; floor > 0 && !score.Acceptable(floor) {
				r.recordError(ctx, listings.SyncError{
					Type:    listings.ErrorTypeValidation,
					Message: fmt.Sprintf("quality score %d below floor %d", score.Overall, floor),
					MLSID:   record.MLSID,
				})
				if r.cfg.ExcludeBelowFloor {
					r.bump(func(c *listings.RunCounters) { c.Processed++; c.Failed++ })
					continue
				}
			}
		}

		created, err := r.syncer.store.Upsert(ctx, record)
		if err != nil {
			r.recordError(ctx, listings.SyncError{
				Type:    listings.ErrorTypeData,
				Message: "persist: " + err.Error(),
				MLSID:   record.MLSID,
			})
			r.bump(func(c *listings.RunCounters) { c.Processed++; c.Failed++ })
			continue
		}
		r.bump(func(c *listings.RunCounters) {
			c.Processed++
			if created {
				c.Created++
			} else {
				c.Updated++
			}
		})
		ingested = append(ingested, record)
	}
	return ingested
}

// seedWindow primes the duplicate window with the catalog's existing
// records, so incoming pages are compared across providers and past
// runs, not just within this one. The window stays bounded; a catalog
// larger than it contributes its leading records only.
func (r *runner) seedWindow(ctx context.Context) {
	existing, err := r.syncer.store.List(ctx, listings.Filter{Limit: r.syncer.window})
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("duplicate window not seeded from catalog")
		return
	}
	r.recent = existing
}

// detectDuplicates compares the page's ingested records against each
// other and the recent window, filing candidates that involve this
// page. A detection pass aborted by cancellation is skipped, not fatal.
func (r *runner) detectDuplicates(ctx context.Context, ingested []listings.Property) {
	if len(ingested) == 0 {
		return
	}

	batch := make([]listings.Property, 0, len(r.recent)+len(ingested))
	batch = append(batch, r.recent...)
	batch = append(batch, ingested...)

	candidates, err := r.syncer.detector.FindDuplicates(ctx, batch)
	if err != nil {
		logging.FromContext(ctx).Debug().Err(err).Msg("duplicate detection pass aborted")
		return
	}

	pageKeys := make(map[string]bool, len(ingested))
	for i := range ingested {
		pageKeys[ingested[i].Key()] = true
	}

	filed := 0
	for _, candidate := range candidates {
		if !pageKeys[candidate.Source.Key()] && !pageKeys[candidate.Target.Key()] {
			continue
		}
		if err := r.syncer.store.SaveCandidate(ctx, candidate); err != nil {
			logging.FromContext(ctx).Warn().
				Err(err).
				Str("candidate", candidate.ID).
				Msg("failed to file duplicate candidate")
			continue
		}
		filed++
	}
	if filed > 0 {
		r.bump(func(c *listings.RunCounters) { c.Duplicates += filed })
	}
}

// advance commits the page boundary: extends the duplicate window,
// moves the resume point past the page, and raises progress. Progress
// only ever goes up.
func (r *runner) advance(page adapters.Page, ingested []listings.Property) {
	r.recent = append(r.recent, ingested...)
	if excess := len(r.recent) - r.syncer.window; excess > 0 {
		trimmed := make([]listings.Property, r.syncer.window)
		copy(trimmed, r.recent[excess:])
		r.recent = trimmed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.page = page.Number + 1

	total := page.Total
	if max := r.run.Options.MaxRecords; max > 0 && (total == 0 || total > max) {
		total = max
	}
	if total > 0 {
		pct := float64(r.run.Counters.Processed) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct > r.run.Progress {
			r.run.Progress = pct
		}
	}
}

// capReached reports whether the run has processed its MaxRecords
// budget.
func (r *runner) capReached(opts listings.SyncOptions) bool {
	if opts.MaxRecords <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run.Counters.Processed >= opts.MaxRecords
}

func (r *runner) bump(update func(*listings.RunCounters)) {
	r.mu.Lock()
	update(&r.run.Counters)
	r.mu.Unlock()
}

// recordError appends the error to the run (record-scoped entries are
// capped) and files an attributed copy in the store's audit log.
func (r *runner) recordError(ctx context.Context, syncErr listings.SyncError) {
	syncErr.ID = r.syncer.newID()
	syncErr.Time = r.syncer.now().UTC()

	recordScoped := syncErr.Type == listings.ErrorTypeData || syncErr.Type == listings.ErrorTypeValidation
	r.mu.Lock()
	if !recordScoped || len(r.run.Errors) < constants.MaxRunErrors {
		r.run.Errors = append(r.run.Errors, syncErr)
	}
	runID := r.run.ID
	r.mu.Unlock()

	audit := syncErr
	audit.ProviderID = r.cfg.ID
	audit.RunID = runID
	if err := r.syncer.store.AppendError(ctx, audit); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("failed to append to error audit log")
	}
}

// issueError converts a per-record decode issue into a run error.
func issueError(issue error) listings.SyncError {
	syncErr := listings.SyncError{
		Type:    listings.ErrorTypeData,
		Message: issue.Error(),
	}
	var recErr *pkgerrors.RecordError
	if stderrors.As(issue, &recErr) {
		syncErr.MLSID = recErr.MLSID
	}
	return syncErr
}

func (r *runner) fail(ctx context.Context, cause error) {
	category := pkgerrors.Classify(cause)
	r.recordError(ctx, listings.SyncError{
		Type:      listings.ErrorType(category),
		Message:   cause.Error(),
		Retryable: category.Retryable(),
	})
	if !r.transition(listings.RunStatusFailed) {
		return
	}
	logging.FromContext(ctx).Error().
		Err(cause).
		Str("category", category.String()).
		Msg("sync run failed")
}

func (r *runner) pause(ctx context.Context) {
	if !r.transition(listings.RunStatusPaused) {
		return
	}
	logging.FromContext(ctx).Info().
		Int("next_page", r.nextPage()).
		Msg("sync run paused")
}

func (r *runner) complete(ctx context.Context) {
	if !r.transition(listings.RunStatusCompleted) {
		return
	}
	r.syncer.noteCompleted(r.cfg.ID, r.startedAt())

	snap := r.snapshot()
	logging.FromContext(ctx).Info().
		Int("processed", snap.Counters.Processed).
		Int("created", snap.Counters.Created).
		Int("updated", snap.Counters.Updated).
		Int("failed", snap.Counters.Failed).
		Int("duplicates", snap.Counters.Duplicates).
		Msg("sync run completed")
}
