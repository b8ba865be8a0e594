package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/blog-edge/internal/model"
	"github.com/sakif/blog-edge/internal/repository"
)

// DefaultRecountConcurrency is how many slugs are reconciled at once when
// none is configured.
const DefaultRecountConcurrency = 8

// DefaultScanTimeout bounds each key listing when none is configured. A
// listing walks the whole keyspace, so it gets far longer than a single
// store call.
const DefaultScanTimeout = time.Minute

// Report summarises one recount run.
type Report struct {
	RunID  string            `json:"runId"`
	DryRun bool              `json:"dryRun"`
	Slugs  int               `json:"slugs"`  // slugs examined
	Drifts []model.SlugDrift `json:"drifts"` // sorted by slug
}

// Reconciler rewrites like counters from their membership keys.
//
// ToggleLike writes the counter and the membership key independently, so
// they can disagree after concurrent toggles or a failed second write. The
// membership keys are the record of who liked what; Recount makes
// likes:<slug> equal to the number of like:<slug>:<userId> keys holding
// "true".
type Reconciler struct {
	store       repository.KeyValueStore
	timeout     time.Duration
	scanTimeout time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewReconciler creates a Reconciler. Non-positive values fall back to
// DefaultStoreTimeout and DefaultRecountConcurrency.
func NewReconciler(store repository.KeyValueStore, timeout time.Duration, concurrency int, logger *slog.Logger) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultRecountConcurrency
	}
	return &Reconciler{
		store:       store,
		timeout:     timeout,
		scanTimeout: DefaultScanTimeout,
		concurrency: concurrency,
		logger:      logger,
	}
}

// WithScanTimeout sets the deadline for each key listing. Non-positive
// values keep DefaultScanTimeout.
func (r *Reconciler) WithScanTimeout(d time.Duration) *Reconciler {
	if d > 0 {
		r.scanTimeout = d
	}
	return r
}

// Recount scans every like counter and membership key and fixes the counters
// that disagree. With dryRun set nothing is written; the report still lists
// the drift. The first store error cancels the run.
func (r *Reconciler) Recount(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{RunID: xid.New().String(), DryRun: dryRun}
	logger := r.logger.With(slog.String("runID", report.RunID))
	logger.Info("recount started", slog.Bool("dryRun", dryRun))

	slugs, err := r.listSlugs(ctx)
	if err != nil {
		return report, err
	}
	report.Slugs = len(slugs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, slug := range slugs {
		g.Go(func() error {
			drift, changed, err := r.reconcile(gctx, slug, dryRun)
			if err != nil {
				return fmt.Errorf("recount %q: %w", slug, err)
			}
			if !changed {
				return nil
			}
			logger.Info("like counter drift",
				slog.String("slug", slug),
				slog.Int64("stored", drift.Stored),
				slog.Int64("members", drift.Members),
			)
			mu.Lock()
			report.Drifts = append(report.Drifts, drift)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("recount failed", slog.String("error", err.Error()))
		return report, err
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].Slug < report.Drifts[j].Slug
	})
	logger.Info("recount finished",
		slog.Int("slugs", report.Slugs),
		slog.Int("drifts", len(report.Drifts)),
	)
	return report, nil
}

// listSlugs collects every slug that has a like counter or a membership key.
func (r *Reconciler) listSlugs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	counters, err := r.scan(ctx, LikeCountKey(""))
	if err != nil {
		return nil, fmt.Errorf("listing like counters: %w", err)
	}
	for _, k := range counters {
		seen[strings.TrimPrefix(k, LikeCountKey(""))] = struct{}{}
	}

	members, err := r.scan(ctx, "like:")
	if err != nil {
		return nil, fmt.Errorf("listing like members: %w", err)
	}
	for _, k := range members {
		slug, _, ok := strings.Cut(strings.TrimPrefix(k, "like:"), ":")
		if !ok {
			continue
		}
		seen[slug] = struct{}{}
	}

	slugs := make([]string, 0, len(seen))
	for s := range seen {
		if ValidateSlug(s) == nil {
			slugs = append(slugs, s)
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// scan lists keys under prefix with its own deadline.
func (r *Reconciler) scan(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.scanTimeout)
	defer cancel()
	return r.store.Keys(ctx, prefix)
}

func (r *Reconciler) reconcile(ctx context.Context, slug string, dryRun bool) (model.SlugDrift, bool, error) {
	keys, err := r.scan(ctx, LikeMemberPrefix(slug))
	if err != nil {
		return model.SlugDrift{}, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var members int64
	for _, k := range keys {
		v, ok, err := r.store.Get(ctx, k)
		if err != nil {
			return model.SlugDrift{}, false, err
		}
		if ok && v == likedValue {
			members++
		}
	}

	var stored int64
	raw, ok, err := r.store.Get(ctx, LikeCountKey(slug))
	if err != nil {
		return model.SlugDrift{}, false, err
	}
	if ok {
		// An unparseable counter is drift as well; -1 marks it in the report.
		if stored, err = strconv.ParseInt(raw, 10, 64); err != nil {
			stored = -1
		}
	}

	if ok && stored == members {
		return model.SlugDrift{}, false, nil
	}
	if !ok && members == 0 {
		return model.SlugDrift{}, false, nil
	}

	drift := model.SlugDrift{Slug: slug, Stored: stored, Members: members}
	if dryRun {
		return drift, true, nil
	}
	if err := r.store.Put(ctx, LikeCountKey(slug), strconv.FormatInt(members, 10)); err != nil {
		return model.SlugDrift{}, false, err
	}
	return drift, true, nil
}
