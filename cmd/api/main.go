package main

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chatrex/internal/adapters/enrich"
	"chatrex/internal/adapters/extractor"
	"chatrex/internal/adapters/repo"
	"chatrex/internal/domain"
	"chatrex/internal/infra/cache"
	"chatrex/internal/infra/config"
	"chatrex/internal/infra/db"
	httpinfra "chatrex/internal/infra/http"
	loginfra "chatrex/internal/infra/log"
	"chatrex/internal/infra/metrics"
	openaiinfra "chatrex/internal/infra/openai"
	"chatrex/internal/usecase/recs"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var cacheStore domain.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		cacheStore = cache.NewRedis(redisClient)
	}

	openaiClient := openaiinfra.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	extract := extractor.NewOpenAI(openaiClient, cfg.OpenAI.Model)
	enricher := enrich.NewEnricher(
		enrich.NewOGResolver(cfg.Ingest.OGTimeout),
		enrich.NewTMDB(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, 5*time.Second),
		cacheStore,
		cfg.Ingest.EnrichConcurrency,
		logger.With().Str("component", "enrich").Logger(),
	)
	merger := recs.NewService(repoAdapter, logger.With().Str("component", "merger").Logger())
	pipeline := recs.NewPipeline(extract, enricher, merger, repoAdapter, cacheStore, logger.With().Str("component", "pipeline").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	handlers := &apiHandlers{
		chatHash: strings.TrimSpace(cfg.ChatHash),
		meta:     repoAdapter,
		store:    repoAdapter,
		pipeline: pipeline,
		log:      logger.With().Str("component", "api").Logger(),
	}

	server.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.SharedSecretMiddleware(cfg.APISecret))
		protected.Post("/api/v1/verify-chat", handlers.verifyChat)
		protected.Post("/api/v1/extract-recs", handlers.extractRecs)
		protected.Get("/api/v1/recommendations", handlers.listRecommendations)
	})

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type apiHandlers struct {
	chatHash string
	meta     domain.MetaRepo
	store    domain.RecommendationRepo
	pipeline *recs.Pipeline
	log      zerolog.Logger
}

type verifyRequest struct {
	Hash string `json:"hash"`
}

// verifyChat сравнивает присланный отпечаток с эталоном за постоянное
// время. Ответ не раскрывает ни эталон, ни позицию расхождения; mismatch —
// это ok:false со статусом 200.
func (h *apiHandlers) verifyChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if h.chatHash == "" {
		metrics.IncVerifyRequest("unconfigured")
		writeError(w, http.StatusInternalServerError, "server hash not configured")
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Hash) == "" {
		metrics.IncVerifyRequest("bad_request")
		writeError(w, http.StatusBadRequest, "missing hash")
		return
	}

	expected, err := hex.DecodeString(h.chatHash)
	if err != nil {
		metrics.IncVerifyRequest("unconfigured")
		writeError(w, http.StatusInternalServerError, "server hash not configured")
		return
	}
	provided, err := hex.DecodeString(strings.TrimSpace(req.Hash))
	if err != nil || len(provided) != len(expected) || subtle.ConstantTimeCompare(provided, expected) != 1 {
		metrics.IncVerifyRequest("mismatch")
		writeJSON(w, domain.VerifyResult{OK: false})
		return
	}

	checkpoint, err := h.meta.GetValue(r.Context(), recs.CheckpointKey)
	if err != nil {
		h.log.Error().Err(err).Msg("api: чтение чекпоинта не удалось")
		metrics.IncVerifyRequest("error")
		writeJSON(w, domain.VerifyResult{OK: false})
		return
	}
	metrics.IncVerifyRequest("ok")
	writeJSON(w, domain.VerifyResult{OK: true, ProgressTimestamp: checkpoint})
}

type extractRequest struct {
	Batch []domain.Message `json:"batch"`
}

type extractResponse struct {
	OK                bool                `json:"ok"`
	Items             []recommendationDTO `json:"items"`
	ProgressTimestamp string              `json:"progressTimestamp"`
	Usage             domain.TokenUsage   `json:"usage"`
}

func (h *apiHandlers) extractRecs(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Batch) == 0 {
		writeError(w, http.StatusBadRequest, "missing batch")
		return
	}

	outcome, err := h.pipeline.ProcessBatch(r.Context(), req.Batch)
	if err != nil {
		h.log.Error().Err(err).Int("batch_size", len(req.Batch)).Msg("api: батч не обработан")
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	writeJSON(w, extractResponse{
		OK:                true,
		Items:             toDTOs(outcome.Saved),
		ProgressTimestamp: outcome.ProgressTimestamp,
		Usage:             outcome.Usage,
	})
}

func (h *apiHandlers) listRecommendations(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context(), r.URL.Query().Get("type"), r.URL.Query().Get("q"))
	if err != nil {
		h.log.Error().Err(err).Msg("api: список рекомендаций не прочитался")
		writeError(w, http.StatusInternalServerError, "failed to list recommendations")
		return
	}
	writeJSON(w, map[string]any{"items": toDTOs(records)})
}

type recommendationDTO struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Type        string           `json:"type"`
	MentionedBy []domain.Mention `json:"mentioned_by"`
	Link        string           `json:"link,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
}

func toDTOs(records []domain.StoredRecommendation) []recommendationDTO {
	out := make([]recommendationDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, recommendationDTO{
			ID:          rec.ID,
			Title:       rec.Title,
			Type:        rec.Type,
			MentionedBy: rec.MentionedBy,
			Link:        rec.Link,
			ImageURL:    rec.ImageURL,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}
