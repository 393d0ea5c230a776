package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrex/internal/domain"
	"chatrex/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.RecommendationRepo = (*Postgres)(nil)
	_ domain.MetaRepo           = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListByTitles возвращает записи с точным совпадением названия — аналог
// дизъюнктивного фильтра одним запросом.
func (p *Postgres) ListByTitles(ctx context.Context, titles []string) ([]domain.StoredRecommendation, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, type, mentioned_by, link, image_url
FROM recommendations
WHERE title = ANY($1)
`, titles)
	metrics.ObserveNetworkRequest("postgres", "recommendations_list_by_titles", "recommendations", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка рекомендаций: %w", err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

// List возвращает записи для выдачи, недавно упомянутые первыми. mediaType
// и query — необязательные фильтры по типу и подстроке названия.
func (p *Postgres) List(ctx context.Context, mediaType, query string) ([]domain.StoredRecommendation, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		conditions []string
		args       []any
	)
	if mediaType != "" {
		args = append(args, mediaType)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if query != "" {
		args = append(args, "%"+strings.ToLower(query)+"%")
		conditions = append(conditions, fmt.Sprintf("lower(title) LIKE $%d", len(args)))
	}
	sql := "SELECT id, title, type, mentioned_by, link, image_url FROM recommendations"
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	sql += " ORDER BY updated_at DESC"

	start := time.Now()
	rows, err := p.pool.Query(ctx, sql, args...)
	metrics.ObserveNetworkRequest("postgres", "recommendations_list", "recommendations", start, err)
	if err != nil {
		return nil, fmt.Errorf("список рекомендаций: %w", err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

// Create сохраняет новую запись и присваивает ей идентификатор.
func (p *Postgres) Create(ctx context.Context, rec domain.StoredRecommendation) (domain.StoredRecommendation, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	rec.ID = uuid.NewString()
	mentions, err := json.Marshal(rec.MentionedBy)
	if err != nil {
		return domain.StoredRecommendation{}, fmt.Errorf("сериализация упоминаний: %w", err)
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO recommendations (id, title, type, mentioned_by, link, image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
`, rec.ID, rec.Title, rec.Type, mentions, rec.Link, rec.ImageURL)
	metrics.ObserveNetworkRequest("postgres", "recommendations_insert", "recommendations", start, err)
	if err != nil {
		return domain.StoredRecommendation{}, fmt.Errorf("вставка рекомендации: %w", err)
	}
	return rec, nil
}

// UpdateMentions перезаписывает список упоминаний записи.
func (p *Postgres) UpdateMentions(ctx context.Context, id string, mentions []domain.Mention) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(mentions)
	if err != nil {
		return fmt.Errorf("сериализация упоминаний: %w", err)
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE recommendations SET mentioned_by = $2, updated_at = now() WHERE id = $1
`, id, payload)
	metrics.ObserveNetworkRequest("postgres", "recommendations_update", "recommendations", start, err)
	if err != nil {
		return fmt.Errorf("обновление рекомендации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("рекомендация %s не найдена", id)
	}
	return nil
}

// GetValue возвращает служебное значение; отсутствие ключа — пустая строка.
func (p *Postgres) GetValue(ctx context.Context, key string) (string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM ingest_meta WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "meta_get", "ingest_meta", start, nil)
		return "", nil
	}
	metrics.ObserveNetworkRequest("postgres", "meta_get", "ingest_meta", start, err)
	if err != nil {
		return "", fmt.Errorf("чтение %s: %w", key, err)
	}
	return value, nil
}

// SetValue сохраняет служебное значение.
func (p *Postgres) SetValue(ctx context.Context, key, value string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO ingest_meta (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`, key, value)
	metrics.ObserveNetworkRequest("postgres", "meta_set", "ingest_meta", start, err)
	if err != nil {
		return fmt.Errorf("запись %s: %w", key, err)
	}
	return nil
}

func scanRecommendations(rows pgx.Rows) ([]domain.StoredRecommendation, error) {
	var out []domain.StoredRecommendation
	for rows.Next() {
		var (
			rec      domain.StoredRecommendation
			mentions []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Type, &mentions, &rec.Link, &rec.ImageURL); err != nil {
			return nil, fmt.Errorf("чтение строки: %w", err)
		}
		if len(mentions) > 0 {
			if err := json.Unmarshal(mentions, &rec.MentionedBy); err != nil {
				return nil, fmt.Errorf("разбор упоминаний %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
