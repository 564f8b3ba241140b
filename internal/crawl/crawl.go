// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl implements the acquisition stage: a scheduler that pages
// through the metadata source and a bounded pool of download workers that
// publish artifacts and append metadata. Progress is checkpointed so an
// interrupted run resumes without duplicating document ids.
package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/corpus-engine/internal/checkpoint"
	"github.com/pdiddy/corpus-engine/pkg/types"
)

// Result summarizes a crawl run.
type Result struct {
	Downloaded int
	Failed     int
	Rejected   int
	Duplicates int
	Exhausted  bool
	Cursor     string
}

// Scheduler drives pagination, validates candidates, assigns document ids,
// and feeds the worker pool. It owns every id until the job is enqueued.
type Scheduler struct {
	cfg        types.CrawlConfig
	source     *Source
	store      checkpoint.Store
	downloader *Downloader
	log        *zap.Logger
}

// NewScheduler wires the acquisition stage together.
func NewScheduler(cfg types.CrawlConfig, source *Source, store checkpoint.Store, downloader *Downloader, log *zap.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, source: source, store: store, downloader: downloader, log: log}
}

// Run executes the acquisition stage until the target success count is
// reached, the source is exhausted, or ctx is cancelled. In-flight
// downloads drain gracefully on all three paths, and the checkpoint always
// reflects the last durably completed unit of work.
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	if err := os.MkdirAll(s.cfg.ArtifactDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating artifact directory: %w", err)
	}
	if dir := filepath.Dir(s.cfg.MetadataPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("creating metadata directory: %w", err)
		}
	}

	// One crawler per metadata log. Interleaved appends from a second
	// process would tear the JSONL.
	lock := flock.New(s.cfg.MetadataPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return Result{}, fmt.Errorf("another crawl is already running against %s", s.cfg.MetadataPath)
	}
	defer lock.Unlock()

	CleanupStaleParts(s.cfg.ArtifactDir, s.log)

	state, err := s.store.Load()
	if err != nil {
		return Result{}, fmt.Errorf("loading checkpoint: %w", err)
	}
	if state.SuccessCount() > 0 {
		s.log.Info("resuming crawl",
			zap.Int("completed", state.SuccessCount()),
			zap.Int("next_doc_id", state.NextDocID),
			zap.String("cursor", state.Cursor))
	}

	metaSink, err := OpenSink(s.cfg.MetadataPath)
	if err != nil {
		return Result{}, err
	}
	defer metaSink.Close()

	failSink, err := OpenSink(s.cfg.MetadataPath + ".failed.log")
	if err != nil {
		return Result{}, err
	}
	defer failSink.Close()

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	jobs := make(chan types.FetchJob, concurrency*2)
	results := make(chan types.DownloadResult, concurrency*2)

	g := new(errgroup.Group)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			s.worker(ctx, jobs, results, metaSink, failSink)
			return nil
		})
	}

	res := Result{Cursor: state.Cursor}
	start := time.Now()
	successCount := state.SuccessCount()
	docID := state.NextDocID
	cursor := state.Cursor
	seen := state.SeenExternal
	outstanding := 0

pages:
	for successCount < s.cfg.TargetCount && ctx.Err() == nil {
		page, err := s.source.FetchPage(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// Malformed page on an otherwise healthy source; wait and
			// re-fetch, the pagination source is eventually available.
			s.log.Warn("page fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				break pages
			case <-time.After(s.source.Policy.BaseDelay):
			}
			continue
		}

		if page.NextCursor == "" {
			s.log.Info("source exhausted")
			res.Exhausted = true
			break
		}

		for _, work := range page.Works {
			if successCount >= s.cfg.TargetCount || ctx.Err() != nil {
				break
			}

			candidate, ok := Validate(work)
			if !ok {
				res.Rejected++
				continue
			}
			if seen[candidate.ExternalID] {
				res.Duplicates++
				continue
			}

			job := types.FetchJob{
				DocID:     docID,
				Candidate: candidate,
				DestPath:  filepath.Join(s.cfg.ArtifactDir, fmt.Sprintf("%d.pdf", docID)),
			}

			// Blocking enqueue with result draining: backpressure from
			// the bounded job queue can never deadlock against workers
			// waiting to report.
			for enqueued := false; !enqueued; {
				select {
				case jobs <- job:
					enqueued = true
				case r := <-results:
					outstanding--
					successCount += s.handleResult(r, &res)
				case <-ctx.Done():
					break pages
				}
			}
			seen[candidate.ExternalID] = true
			docID++
			outstanding++
		}

		// Persist the cursor only after the page's candidates are
		// enqueued; a crash mid-page re-fetches that page.
		cursor = page.NextCursor
		if err := s.store.SaveCursor(cursor); err != nil {
			s.log.Error("saving cursor", zap.Error(err))
		}
		res.Cursor = cursor

		// Drain completions between pages. Once enough jobs are in
		// flight to meet the target, wait for them rather than fetch
		// further pages.
		for successCount < s.cfg.TargetCount {
			if outstanding > 0 && successCount+outstanding >= s.cfg.TargetCount {
				select {
				case r := <-results:
					outstanding--
					successCount += s.handleResult(r, &res)
				case <-ctx.Done():
					break pages
				}
				continue
			}
			select {
			case r := <-results:
				outstanding--
				successCount += s.handleResult(r, &res)
				continue
			default:
			}
			break
		}
	}

	// Poison the pool and drain every in-flight job.
	close(jobs)
	waitDone := make(chan struct{})
	go func() {
		g.Wait()
		close(results)
		close(waitDone)
	}()
	for r := range results {
		successCount += s.handleResult(r, &res)
	}
	<-waitDone

	s.log.Info("crawl finished",
		zap.Int("downloaded", res.Downloaded),
		zap.Int("failed", res.Failed),
		zap.Int("rejected", res.Rejected),
		zap.Int("duplicates", res.Duplicates),
		zap.Bool("exhausted", res.Exhausted),
		zap.Duration("elapsed", time.Since(start)))

	if err := WriteManifest(s.cfg.MetadataPath+".run.yaml", Manifest{
		CompletedAt: time.Now().UTC(),
		Elapsed:     time.Since(start).Round(time.Millisecond).String(),
		TargetCount: s.cfg.TargetCount,
		Downloaded:  res.Downloaded,
		Failed:      res.Failed,
		Rejected:    res.Rejected,
		Duplicates:  res.Duplicates,
		Exhausted:   res.Exhausted,
		Cursor:      res.Cursor,
	}); err != nil {
		s.log.Warn("writing run manifest", zap.Error(err))
	}

	return res, ctx.Err()
}

// handleResult folds one worker report into the run totals and returns 1
// for a success so the caller can advance its success count.
func (s *Scheduler) handleResult(r types.DownloadResult, res *Result) int {
	if r.Success {
		res.Downloaded++
		return 1
	}
	res.Failed++
	return 0
}

// worker consumes jobs until the channel closes. Per job it downloads,
// appends exactly one line to exactly one sink, records the completion,
// and reports the result, in that order, so each append is durable
// before the next job starts.
func (s *Scheduler) worker(ctx context.Context, jobs <-chan types.FetchJob, results chan<- types.DownloadResult, metaSink, failSink *Sink) {
	for job := range jobs {
		r := s.downloader.Fetch(ctx, job)

		if r.Success {
			rec := types.DocumentRecord{
				DocID:           job.DocID,
				ExternalID:      job.Candidate.ExternalID,
				Title:           job.Candidate.Title,
				SourceURL:       job.Candidate.SourceURL,
				PublicationYear: job.Candidate.PublicationYear,
				Ranking:         job.Candidate.Ranking,
				TitleTokens:     job.Candidate.TitleTokens,
				ArtifactPath:    r.ArtifactPath,
			}
			if err := metaSink.Append(rec); err != nil {
				s.log.Error("appending metadata", zap.Int("doc_id", job.DocID), zap.Error(err))
				r = types.DownloadResult{DocID: job.DocID, Reason: "metadata_write_failed"}
			} else if err := s.store.MarkCompleted(job.DocID, job.Candidate.ExternalID); err != nil {
				s.log.Error("marking completion", zap.Int("doc_id", job.DocID), zap.Error(err))
			}
		}

		if !r.Success {
			if err := failSink.Append(types.FailureRecord{
				DocID:     job.DocID,
				SourceURL: job.Candidate.SourceURL,
				Reason:    r.Reason,
			}); err != nil {
				s.log.Error("appending failure record", zap.Int("doc_id", job.DocID), zap.Error(err))
			}
		}

		results <- r
	}
}
