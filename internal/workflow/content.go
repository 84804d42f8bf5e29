package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"contentagent/internal/config"
	"contentagent/internal/curate"
	"contentagent/internal/dedup"
	"contentagent/internal/domain"
	"contentagent/internal/generate"
	"contentagent/internal/ports"
	"contentagent/internal/rank"
	"contentagent/internal/storage"
)

const dateLayout = "2006-01-02"

// ContentWorkflow is the main daily pipeline: ingest new records from all
// subscribed sources, evaluate and rank them into a shortlist, and optionally
// generate a blog post from it. A failed stage short-circuits the rest.
type ContentWorkflow struct {
	cfg      config.Config
	store    *storage.Manager
	cache    ports.Cache
	creators ports.CreatorSource
	feeds    ports.FeedSource
	curator  *curate.Curator
	ranker   *rank.Ranker
	blogGen  *generate.BlogGenerator
	dedup    *dedup.Deduplicator
	logger   *slog.Logger
}

// NewContentWorkflow wires the content pipeline. cache may be nil.
func NewContentWorkflow(
	cfg config.Config,
	store *storage.Manager,
	cache ports.Cache,
	creators ports.CreatorSource,
	feeds ports.FeedSource,
	curator *curate.Curator,
	blogGen *generate.BlogGenerator,
	logger *slog.Logger,
) *ContentWorkflow {
	return &ContentWorkflow{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		creators: creators,
		feeds:    feeds,
		curator:  curator,
		ranker:   rank.New(),
		blogGen:  blogGen,
		dedup:    dedup.New(),
		logger:   logger,
	}
}

func (w *ContentWorkflow) Name() string { return "content" }

// ValidatePrerequisites checks the evaluator credentials and data layout.
func (w *ContentWorkflow) ValidatePrerequisites(ctx context.Context) error {
	if w.cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is not set")
	}
	if _, err := os.Stat(w.store.Root()); err != nil {
		return fmt.Errorf("data root %s not initialized: %w", w.store.Root(), err)
	}
	return nil
}

// Execute runs ingest, curate, and generate in order. The first failed stage
// aborts the run; later stages are not attempted.
func (w *ContentWorkflow) Execute(ctx context.Context) domain.WorkflowResult {
	stages := []struct {
		name string
		run  func(context.Context) domain.WorkflowResult
	}{
		{"ingest", w.ingest},
		{"curate", w.curate},
		{"generate", w.generateBlog},
	}

	total := domain.OKResult(0)
	for _, stage := range stages {
		if stage.name == "generate" && !w.cfg.Curation.GenerateBlog {
			w.logger.Info("blog generation disabled, skipping stage")
			continue
		}

		res := stage.run(ctx)
		total.ItemsProcessed += res.ItemsProcessed
		total.Errors = append(total.Errors, res.Errors...)
		total.Metadata[stage.name] = res.Metadata

		if !res.Success {
			w.logger.Error("stage failed, aborting run", "stage", stage.name, "errors", res.Errors)
			total.Success = false
			total.Metadata["failed_stage"] = stage.name
			return total
		}
		w.logger.Info("stage complete", "stage", stage.name, "items", res.ItemsProcessed)
	}

	return total
}

// Cleanup drops the per-run seen set.
func (w *ContentWorkflow) Cleanup(ctx context.Context) {
	w.dedup.Reset()
	w.logger.Debug("content workflow cleanup done")
}

// ingest fetches new records from every subscription. A failed source is
// recorded and skipped without advancing its cursor; only storage failures
// fail the stage.
func (w *ContentWorkflow) ingest(ctx context.Context) domain.WorkflowResult {
	seen, err := w.store.InboxKeys()
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read inbox keys: %v", err))
	}

	limit := w.cfg.Ingestion.MaxItemsPerSource
	now := time.Now().UTC()

	var batch []domain.InboxRecord
	var sourceErrs []string

	creators, err := w.store.ReadCreators()
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read creators: %v", err))
	}
	for _, creator := range creators {
		records, err := w.creators.FetchCreatorPosts(ctx, creator, limit)
		if err != nil {
			w.logger.Warn("creator fetch failed, cursor not advanced", "creator", creator.Username, "error", err)
			sourceErrs = append(sourceErrs, fmt.Sprintf("creator %s: %v", creator.Username, err))
			continue
		}

		batch = append(batch, w.filterNew(records, seen)...)
		if err := w.store.AdvanceCreatorCursor(creator.ID, now); err != nil {
			w.logger.Warn("failed to advance creator cursor", "creator", creator.Username, "error", err)
		}
	}

	feeds, err := w.store.ReadFeeds()
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read feeds: %v", err))
	}
	for _, feed := range feeds {
		records, err := w.feeds.FetchFeedItems(ctx, feed, feed.LastFetchedAt, limit)
		if err != nil {
			w.logger.Warn("feed fetch failed, cursor not advanced", "feed", feed.URL, "error", err)
			sourceErrs = append(sourceErrs, fmt.Sprintf("feed %s: %v", feed.URL, err))
			continue
		}

		batch = append(batch, w.filterNew(records, seen)...)
		if err := w.store.AdvanceFeedCursor(feed.ID, now); err != nil {
			w.logger.Warn("failed to advance feed cursor", "feed", feed.URL, "error", err)
		}
	}

	if len(batch) > 0 {
		if err := w.store.AppendInbox(batch); err != nil {
			return domain.FailedResult(fmt.Sprintf("persist inbox batch: %v", err))
		}
		if w.cache != nil {
			if _, err := w.cache.IndexRecords(ctx, batch); err != nil {
				w.logger.Warn("cache indexing failed, durable store unaffected", "error", err)
			}
		}
	}

	res := domain.OKResult(len(batch))
	res.Errors = sourceErrs
	res.Metadata["creators"] = len(creators)
	res.Metadata["feeds"] = len(feeds)
	return res
}

// filterNew drops records seen earlier in this run or already persisted.
func (w *ContentWorkflow) filterNew(records []domain.InboxRecord, persisted map[domain.NaturalKey]struct{}) []domain.InboxRecord {
	fresh := w.dedup.FilterDuplicates(records)
	out := make([]domain.InboxRecord, 0, len(fresh))
	for _, r := range fresh {
		if _, ok := persisted[r.Key()]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// curate evaluates a bounded batch of pending records, ranks the qualifiers
// into today's shortlist, and removes the successfully evaluated records from
// the inbox. Records whose evaluation failed stay pending for the next run.
func (w *ContentWorkflow) curate(ctx context.Context) domain.WorkflowResult {
	inbox, err := w.store.ReadInbox(ctx)
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read inbox: %v", err))
	}
	if len(inbox) == 0 {
		w.logger.Info("inbox empty, nothing to curate")
		return domain.OKResult(0)
	}

	pending := inbox
	if bound := w.cfg.Curation.MaxEvaluate; bound > 0 && len(pending) > bound {
		pending = pending[:bound]
	}

	curated := w.curator.EvaluateRecords(ctx, pending)
	ranked := w.ranker.FilterAndRank(curated, w.cfg.Curation.MinScore, w.cfg.Curation.TopK)
	stats := w.ranker.GetStatistics(curated)

	date := time.Now().UTC().Format(dateLayout)
	if len(ranked) > 0 {
		if err := w.store.WriteCurated(date, ranked); err != nil {
			return domain.FailedResult(fmt.Sprintf("persist shortlist: %v", err))
		}
	}

	evaluated := make(map[string]struct{}, len(curated))
	for _, c := range curated {
		evaluated[c.SourceID] = struct{}{}
	}
	done := make([]domain.InboxRecord, 0, len(pending))
	for _, r := range pending {
		if _, ok := evaluated[r.ID]; ok {
			done = append(done, r)
		}
	}
	removed, err := w.store.RemoveInboxRecords(ctx, done)
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("remove evaluated records: %v", err))
	}

	res := domain.OKResult(len(ranked))
	res.Metadata["date"] = date
	res.Metadata["evaluated"] = len(curated)
	res.Metadata["removed"] = removed
	res.Metadata["pending_after"] = len(inbox) - removed
	res.Metadata["score_stats"] = stats
	return res
}

// generateBlog turns today's shortlist into a blog artifact and archives the
// consumed shortlist.
func (w *ContentWorkflow) generateBlog(ctx context.Context) domain.WorkflowResult {
	date := time.Now().UTC().Format(dateLayout)

	shortlist, err := w.store.ReadCurated(date)
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("read shortlist: %v", err))
	}
	if len(shortlist) == 0 {
		w.logger.Info("no shortlist for today, skipping generation", "date", date)
		return domain.OKResult(0)
	}

	note := fmt.Sprintf("Daily digest for %s built from the %d top-ranked items.", date, len(shortlist))
	post, err := w.blogGen.Generate(ctx, shortlist, note)
	if err != nil {
		return domain.FailedResult(fmt.Sprintf("generate blog: %v", err))
	}

	if err := w.store.WriteBlog(generate.Filename(post), post); err != nil {
		return domain.FailedResult(fmt.Sprintf("write blog: %v", err))
	}
	if err := w.store.ArchiveCurated(date); err != nil {
		return domain.FailedResult(fmt.Sprintf("archive shortlist: %v", err))
	}

	res := domain.OKResult(1)
	res.Metadata["blog_id"] = post.ID
	res.Metadata["slug"] = post.Slug
	res.Metadata["sources"] = len(post.SourceItems)
	return res
}
