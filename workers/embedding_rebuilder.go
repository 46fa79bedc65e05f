package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/database"
	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/models"
)

type RebuildOutcome string

const (
	OutcomeUpdated      RebuildOutcome = "updated"       // embedding overwritten
	OutcomeCleared      RebuildOutcome = "cleared"       // no face found, embedding removed
	OutcomeMissingImage RebuildOutcome = "missing_image" // reference photo not on disk, row untouched
	OutcomeFailed       RebuildOutcome = "failed"        // unreadable image or database error, row untouched
)

type RebuildJob struct {
	Person database.PersonImage
}

type RebuildResult struct {
	PersonID int64
	Name     string
	Outcome  RebuildOutcome
	Err      error
}

// RebuildSummary counts outcomes of one rebuild pass
type RebuildSummary struct {
	Total        int
	Updated      int
	Cleared      int
	MissingImage int
	Failed       int
	Results      []RebuildResult
}

func (s *RebuildSummary) add(r RebuildResult) {
	switch r.Outcome {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeCleared:
		s.Cleared++
	case OutcomeMissingImage:
		s.MissingImage++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// EmbeddingRebuilder re-derives every person's embedding from the stored
// reference photo. Running it twice with the same model leaves the registry
// unchanged.
type EmbeddingRebuilder struct {
	JobQueue   chan RebuildJob
	DB         database.Querier
	Extractor  media.FaceExtractor
	Processor  *media.Processor
	NumWorkers int
	Wg         sync.WaitGroup
	StopChan   chan struct{}
	stopOnce   sync.Once
	log        *zap.Logger
}

func NewEmbeddingRebuilder(db database.Querier, extractor media.FaceExtractor, processor *media.Processor, numWorkers int, log *zap.Logger) *EmbeddingRebuilder {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &EmbeddingRebuilder{
		DB:         db,
		Extractor:  extractor,
		Processor:  processor,
		NumWorkers: numWorkers,
		StopChan:   make(chan struct{}),
		log:        log,
	}
}

// Stop asks the workers to finish their current job and exit
func (r *EmbeddingRebuilder) Stop() {
	r.stopOnce.Do(func() { close(r.StopChan) })
}

// Run processes every registered person once. progress, if non-nil, is called
// from a single goroutine after each person.
func (r *EmbeddingRebuilder) Run(ctx context.Context, progress func(RebuildResult)) (RebuildSummary, error) {
	people, err := database.ListPersonImages(ctx, r.DB)
	if err != nil {
		return RebuildSummary{}, fmt.Errorf("failed to load persons for rebuild: %w", err)
	}

	summary := RebuildSummary{Total: len(people)}
	r.JobQueue = make(chan RebuildJob, len(people))
	results := make(chan RebuildResult, r.NumWorkers)

	r.Wg.Add(r.NumWorkers)
	for i := 0; i < r.NumWorkers; i++ {
		go r.worker(ctx, i, results)
	}
	r.log.Info("started embedding rebuild",
		zap.Int("workers", r.NumWorkers),
		zap.Int("persons", len(people)),
		zap.String("model", r.Extractor.ModelName()))

	for _, p := range people {
		r.JobQueue <- RebuildJob{Person: p}
	}
	close(r.JobQueue)

	go func() {
		r.Wg.Wait()
		close(results)
	}()

	for result := range results {
		summary.add(result)
		if progress != nil {
			progress(result)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *EmbeddingRebuilder) worker(ctx context.Context, id int, results chan<- RebuildResult) {
	defer r.Wg.Done()

	for {
		select {
		case job, ok := <-r.JobQueue:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			results <- r.process(ctx, job)
		case <-r.StopChan:
			r.log.Info("rebuild worker stopping: stop signal received", zap.Int("worker", id))
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *EmbeddingRebuilder) process(ctx context.Context, job RebuildJob) RebuildResult {
	p := job.Person
	result := RebuildResult{PersonID: p.ID, Name: p.Name}
	log := r.log.With(zap.Int64("person_id", p.ID), zap.String("image", p.ImageFilename))

	data, err := r.Processor.LoadReferenceImage(p.ImageFilename)
	if err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			log.Warn("reference image missing, skipping")
			result.Outcome = OutcomeMissingImage
		} else {
			log.Error("failed to read reference image", zap.Error(err))
			result.Outcome = OutcomeFailed
		}
		result.Err = err
		return result
	}

	embedding, found, err := r.Extractor.ExtractPrimary(ctx, data)
	if err != nil {
		log.Error("face extraction failed", zap.Error(err))
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	if !found {
		if err := database.ClearPersonEmbedding(ctx, r.DB, p.ID); err != nil {
			result.Outcome = OutcomeFailed
			result.Err = err
			return result
		}
		log.Info("no face found, embedding cleared")
		result.Outcome = OutcomeCleared
		return result
	}

	if err := database.SetPersonEmbedding(ctx, r.DB, p.ID, models.EncodeEmbedding(embedding), r.Extractor.ModelName()); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	result.Outcome = OutcomeUpdated
	return result
}
