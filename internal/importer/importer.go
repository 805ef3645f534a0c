package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/observability"
	"github.com/doubledash/doubledash/internal/storage"
	"github.com/doubledash/doubledash/internal/strava"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrMissingUserID rejects an ingest record without a userId.
var ErrMissingUserID = errors.New("missing userId")

// Sync run sources.
const (
	SourceStrava = "strava"
	SourceIngest = "ingest"
)

// Store is the subset of *storage.DB the importer writes through.
type Store interface {
	GetStravaToken(ctx context.Context, userID string) (*models.StravaToken, error)
	SaveStravaToken(ctx context.Context, tok models.StravaToken) error
	LatestActivityStart(ctx context.Context, userID string) (*time.Time, error)
	UpsertActivities(ctx context.Context, userID string, acts []models.Activity) (int64, error)
	InsertSyncRun(ctx context.Context, run storage.SyncRun) (uuid.UUID, error)
	UpdateSyncRun(ctx context.Context, id uuid.UUID, run storage.SyncRun) error
}

// Source pages through a remote activity feed. *strava.Client satisfies it.
type Source interface {
	TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource
	ListActivities(ctx context.Context, ts oauth2.TokenSource, after time.Time, page, perPage int) ([]models.Activity, error)
}

// Stats tracks import progress.
type Stats struct {
	Users              int
	UsersErrored       int
	PagesFetched       int
	ActivitiesReceived int
	ActivitiesWritten  int64
	ActivitiesSkipped  int
	TokensRefreshed    int
}

func (s *Stats) add(o Stats) {
	s.Users += o.Users
	s.UsersErrored += o.UsersErrored
	s.PagesFetched += o.PagesFetched
	s.ActivitiesReceived += o.ActivitiesReceived
	s.ActivitiesWritten += o.ActivitiesWritten
	s.ActivitiesSkipped += o.ActivitiesSkipped
	s.TokensRefreshed += o.TokensRefreshed
}

// Importer pulls activities from Strava, or accepts pushed batches, and
// writes them to the store.
type Importer struct {
	store   Store
	source  Source
	log     *slog.Logger
	dryRun  bool
	full    bool
	perPage int
	now     func() time.Time
}

// New creates a new Importer. In dry-run mode nothing is written; counts
// reflect what would have been stored.
func New(store Store, source Source, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{
		store:   store,
		source:  source,
		log:     log,
		dryRun:  dryRun,
		perPage: strava.MaxPerPage,
		now:     time.Now,
	}
}

// SetFull makes the next syncs ignore the stored cursor and fetch the
// athlete's whole history.
func (imp *Importer) SetFull(full bool) {
	imp.full = full
}

// SetPageSize overrides the Strava page size.
func (imp *Importer) SetPageSize(n int) {
	if n > 0 {
		imp.perPage = n
	}
}

// SyncAll syncs each user in turn. A failure for one user is logged and
// counted; the remaining users still sync.
func (imp *Importer) SyncAll(ctx context.Context, userIDs []string) (*Stats, error) {
	total := &Stats{}
	var errs []error
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		s, err := imp.SyncUser(ctx, id)
		total.add(*s)
		if err != nil {
			total.UsersErrored++
			imp.log.Error("sync failed", "user", id, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
		}
	}
	return total, errors.Join(errs...)
}

// SyncUser fetches the user's activities newer than the latest stored start
// date and upserts them. Refreshed OAuth tokens are persisted.
func (imp *Importer) SyncUser(ctx context.Context, userID string) (*Stats, error) {
	stats := &Stats{Users: 1}
	started := imp.now()

	stored, err := imp.store.GetStravaToken(ctx, userID)
	if err != nil {
		return stats, fmt.Errorf("loading strava token: %w", err)
	}

	var after time.Time
	if !imp.full {
		latest, err := imp.store.LatestActivityStart(ctx, userID)
		if err != nil {
			return stats, err
		}
		if latest != nil {
			after = *latest
		}
	}

	runID := imp.beginRun(ctx, userID, SourceStrava)

	ts := imp.source.TokenSource(ctx, strava.TokenFromModel(stored))
	syncErr := imp.pull(ctx, userID, ts, after, stats)

	if syncErr == nil {
		syncErr = imp.persistToken(ctx, stored, ts, stats)
	}

	imp.finishRun(ctx, runID, userID, SourceStrava, started, stats, syncErr)
	imp.log.Info("strava sync finished",
		"user", userID,
		"after", after,
		"pages", stats.PagesFetched,
		"received", stats.ActivitiesReceived,
		"written", stats.ActivitiesWritten,
		"skipped", stats.ActivitiesSkipped,
		"dry_run", imp.dryRun,
	)
	return stats, syncErr
}

func (imp *Importer) pull(ctx context.Context, userID string, ts oauth2.TokenSource, after time.Time, stats *Stats) error {
	for page := 1; ; page++ {
		acts, err := imp.source.ListActivities(ctx, ts, after, page, imp.perPage)
		if err != nil {
			return fmt.Errorf("listing activities: %w", err)
		}
		stats.PagesFetched++
		if len(acts) == 0 {
			return nil
		}
		stats.ActivitiesReceived += len(acts)

		valid := make([]models.Activity, 0, len(acts))
		for i, a := range acts {
			n, err := normalize(i, a, userID)
			if err != nil {
				imp.log.Warn("skipping activity", "user", userID, "error", err)
				stats.ActivitiesSkipped++
				continue
			}
			valid = append(valid, n)
		}

		if imp.dryRun {
			stats.ActivitiesWritten += int64(len(valid))
		} else if len(valid) > 0 {
			written, err := imp.store.UpsertActivities(ctx, userID, valid)
			stats.ActivitiesWritten += written
			if err != nil {
				return err
			}
		}

		if len(acts) < imp.perPage {
			return nil
		}
	}
}

func (imp *Importer) persistToken(ctx context.Context, stored *models.StravaToken, ts oauth2.TokenSource, stats *Stats) error {
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if tok.AccessToken == stored.AccessToken {
		return nil
	}
	stats.TokensRefreshed++
	if imp.dryRun {
		return nil
	}
	return imp.store.SaveStravaToken(ctx, strava.TokenToModel(stored.UserID, stored.AthleteID, tok))
}

// Ingest stores a pushed batch. Records are grouped by their userId field;
// a record without one, or with an unparseable start_date, fails the whole
// batch before anything is written. Returns the rows written per user.
func (imp *Importer) Ingest(ctx context.Context, acts []models.Activity) (map[string]int64, error) {
	byUser := map[string][]models.Activity{}
	var order []string
	for i, a := range acts {
		if a.UserID == "" {
			return nil, fmt.Errorf("activity %d (index %d): %w", a.ActivityID, i, ErrMissingUserID)
		}
		n, err := normalize(i, a, a.UserID)
		if err != nil {
			return nil, err
		}
		if _, ok := byUser[a.UserID]; !ok {
			order = append(order, a.UserID)
		}
		byUser[a.UserID] = append(byUser[a.UserID], n)
	}

	written := make(map[string]int64, len(order))
	for _, userID := range order {
		batch := byUser[userID]
		started := imp.now()
		stats := &Stats{Users: 1, ActivitiesReceived: len(batch)}
		runID := imp.beginRun(ctx, userID, SourceIngest)

		var err error
		if imp.dryRun {
			stats.ActivitiesWritten = int64(len(batch))
		} else {
			stats.ActivitiesWritten, err = imp.store.UpsertActivities(ctx, userID, batch)
		}
		imp.finishRun(ctx, runID, userID, SourceIngest, started, stats, err)
		if err != nil {
			return written, fmt.Errorf("storing activities for %s: %w", userID, err)
		}
		written[userID] = stats.ActivitiesWritten
	}
	return written, nil
}

// normalize validates start_date and rewrites it as UTC RFC 3339, the form
// the store indexes on.
func normalize(i int, a models.Activity, userID string) (models.Activity, error) {
	t, err := analytics.UTC.StartTime(i, a)
	if err != nil {
		return a, err
	}
	a.UserID = userID
	a.StartDate = t.UTC().Format(time.RFC3339)
	return a, nil
}

func (imp *Importer) beginRun(ctx context.Context, userID, source string) uuid.UUID {
	if imp.dryRun {
		return uuid.Nil
	}
	id, err := imp.store.InsertSyncRun(ctx, storage.SyncRun{
		UserID: userID,
		Source: source,
		Status: storage.SyncRunning,
	})
	if err != nil {
		imp.log.Error("failed to create sync run", "user", userID, "error", err)
		return uuid.Nil
	}
	return id
}

func (imp *Importer) finishRun(ctx context.Context, id uuid.UUID, userID, source string, started time.Time, stats *Stats, runErr error) {
	finished := imp.now()
	status := storage.SyncSuccess
	if runErr != nil {
		status = storage.SyncError
	}
	observability.RecordSync(source, status, stats.ActivitiesReceived, stats.ActivitiesWritten, finished)

	if id == uuid.Nil {
		return
	}
	durationMs := int(finished.Sub(started).Milliseconds())
	run := storage.SyncRun{
		Status:             status,
		ActivitiesReceived: stats.ActivitiesReceived,
		ActivitiesWritten:  stats.ActivitiesWritten,
		DurationMs:         &durationMs,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.ErrorMessage = &msg
	}
	// The caller's context may already be cancelled; the run row must still close.
	if err := imp.store.UpdateSyncRun(context.WithoutCancel(ctx), id, run); err != nil {
		imp.log.Error("failed to update sync run", "user", userID, "id", id, "error", err)
	}
}
