package domain

import (
	"context"
	"time"
)

// RecommendationRepo управляет записями рекомендаций.
type RecommendationRepo interface {
	ListByTitles(ctx context.Context, titles []string) ([]StoredRecommendation, error)
	Create(ctx context.Context, rec StoredRecommendation) (StoredRecommendation, error)
	UpdateMentions(ctx context.Context, id string, mentions []Mention) error
	List(ctx context.Context, mediaType, query string) ([]StoredRecommendation, error)
}

// MetaRepo хранит служебные ключи, в том числе чекпоинт обработки.
type MetaRepo interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
}

// Extractor извлекает кандидатов рекомендаций из батча сообщений.
type Extractor interface {
	Extract(ctx context.Context, batch []Message) ([]Candidate, TokenUsage, error)
}

// LinkResolver получает метаданные страницы по URL.
type LinkResolver interface {
	Resolve(ctx context.Context, url string) (LinkMeta, error)
}

// TitleSearcher ищет каноническое название и постер по типу контента.
// Возвращает nil без ошибки, если ничего не нашлось.
type TitleSearcher interface {
	Search(ctx context.Context, title, mediaType string) (*TitleMeta, error)
}

// VerifyClient — клиент серверной проверки подлинности экспорта.
type VerifyClient interface {
	VerifyChat(ctx context.Context, hashHex string) (VerifyResult, error)
}

// ExtractClient — клиент обработки батча на сервере.
type ExtractClient interface {
	ExtractBatch(ctx context.Context, batch []Message) (BatchResult, error)
}

// Cache используется для TTL-хранилищ и коротких аренда-блокировок.
type Cache interface {
	WithLease(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
