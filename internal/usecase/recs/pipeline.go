package recs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chatrex/internal/chat"
	"chatrex/internal/domain"
	"chatrex/internal/infra/metrics"
)

const (
	// CheckpointKey — ключ чекпоинта в служебном хранилище.
	CheckpointKey = "progress_timestamp"

	checkpointLockKey  = "chatrex:checkpoint_lock"
	checkpointLeaseTTL = 10 * time.Second
)

// ErrEmptyBatch возвращается на батч без сообщений.
var ErrEmptyBatch = errors.New("батч пуст")

// Enricher — обогащение кандидатов, см. adapters/enrich.
type Enricher interface {
	EnrichAll(ctx context.Context, items []domain.Candidate) []domain.Recommendation
}

// Pipeline — серверная обработка одного батча: извлечение, обогащение,
// слияние с хранилищем и сдвиг чекпоинта.
type Pipeline struct {
	extractor domain.Extractor
	enricher  Enricher
	merger    *Service
	meta      domain.MetaRepo
	cache     domain.Cache
	log       zerolog.Logger
}

// NewPipeline собирает обработчик батчей. cache может быть nil — тогда
// сдвиг чекпоинта идёт без аренды (одна нода, гонки невозможны).
func NewPipeline(extractor domain.Extractor, enricher Enricher, merger *Service, meta domain.MetaRepo, cacheStore domain.Cache, logger zerolog.Logger) *Pipeline {
	return &Pipeline{extractor: extractor, enricher: enricher, merger: merger, meta: meta, cache: cacheStore, log: logger}
}

// BatchOutcome — итог обработки батча.
type BatchOutcome struct {
	Saved             []domain.StoredRecommendation
	ProgressTimestamp string
	Usage             domain.TokenUsage
}

// ProcessBatch ведёт батч через весь конвейер. Ошибка извлечения — ошибка
// батча целиком: чекпоинт не двигается, клиент может повторить тот же батч.
// Сбои записи и сдвига чекпоинта батч не роняют: извлечение уже оплачено,
// частичная запись лучше остановки.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch []domain.Message) (BatchOutcome, error) {
	if len(batch) == 0 {
		return BatchOutcome{}, ErrEmptyBatch
	}

	candidates, usage, err := p.extractor.Extract(ctx, batch)
	if err != nil {
		metrics.ObserveIngestBatch(0, err)
		return BatchOutcome{}, err
	}

	enriched := p.enricher.EnrichAll(ctx, candidates)
	saved := p.merger.SaveBatch(ctx, enriched)

	progress := batch[len(batch)-1].Timestamp
	p.advanceCheckpoint(ctx, progress)

	metrics.ObserveIngestBatch(len(batch), nil)
	return BatchOutcome{Saved: saved, ProgressTimestamp: progress, Usage: usage}, nil
}

// advanceCheckpoint двигает чекпоинт строго вперёд и под короткой арендой:
// две гоняющиеся сессии не смогут откатить прогресс друг друга.
func (p *Pipeline) advanceCheckpoint(ctx context.Context, timestamp string) {
	if timestamp == "" {
		return
	}
	advance := func() error {
		current, err := p.meta.GetValue(ctx, CheckpointKey)
		if err != nil {
			return err
		}
		if current != "" {
			currentInstant, okCurrent := chat.ParseTimestamp(current)
			nextInstant, okNext := chat.ParseTimestamp(timestamp)
			if okCurrent && okNext && !nextInstant.After(currentInstant) {
				return nil
			}
		}
		return p.meta.SetValue(ctx, CheckpointKey, timestamp)
	}

	var err error
	if p.cache != nil {
		err = p.cache.WithLease(ctx, checkpointLockKey, checkpointLeaseTTL, advance)
	} else {
		err = advance()
	}
	if err != nil {
		p.log.Error().Err(err).Str("timestamp", timestamp).Msg("ingest: чекпоинт не сдвинулся")
	}
}
