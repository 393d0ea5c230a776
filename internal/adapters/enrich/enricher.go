package enrich

import (
	"context"
	"encoding/json"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chatrex/internal/domain"
	"chatrex/internal/infra/metrics"
)

const cacheTTL = 24 * time.Hour

// Enricher превращает сырых кандидатов в рекомендации с каноническим
// названием, ссылкой и картинкой.
type Enricher struct {
	links  domain.LinkResolver
	titles domain.TitleSearcher
	cache  domain.Cache
	limit  int
	log    zerolog.Logger
}

// NewEnricher создаёт обогатитель. cache может быть nil — тогда каждый
// запрос уходит к стороннему сервису напрямую.
func NewEnricher(links domain.LinkResolver, titles domain.TitleSearcher, cache domain.Cache, limit int, logger zerolog.Logger) *Enricher {
	if limit <= 0 {
		limit = 6
	}
	return &Enricher{links: links, titles: titles, cache: cache, limit: limit, log: logger}
}

// EnrichAll обогащает кандидатов подбатчами фиксированного размера: внутри
// подбатча запросы к сторонним сервисам идут параллельно, подбатчи — друг
// за другом. Это ограничивает веер исходящих запросов. Сбой обогащения
// одного кандидата не трогает соседей. Порядок результата совпадает с
// порядком входа.
func (e *Enricher) EnrichAll(ctx context.Context, items []domain.Candidate) []domain.Recommendation {
	type slot struct {
		rec  domain.Recommendation
		kept bool
	}
	slots := make([]slot, len(items))

	for offset := 0; offset < len(items); offset += e.limit {
		end := min(offset+e.limit, len(items))
		var g errgroup.Group
		for i := offset; i < end; i++ {
			i := i
			g.Go(func() error {
				rec, kept := e.enrichOne(ctx, items[i])
				slots[i] = slot{rec: rec, kept: kept}
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make([]domain.Recommendation, 0, len(items))
	for _, s := range slots {
		if s.kept {
			out = append(out, s.rec)
		}
	}
	return out
}

// enrichOne обогащает одного кандидата. Кандидат со ссылкой, для которой не
// удалось получить og:title, отбрасывается целиком: нерезолвящийся URL не
// несёт пригодного названия. Промах поиска по названию лишь деградирует до
// «без постера».
func (e *Enricher) enrichOne(ctx context.Context, item domain.Candidate) (domain.Recommendation, bool) {
	title := strings.TrimSpace(item.Title)
	var link, image string

	if u := ExtractURL(title); u != "" {
		link = u
		meta, err := e.resolveLink(ctx, u)
		if err != nil || meta.Title == "" {
			if err != nil {
				e.log.Debug().Err(err).Str("url", u).Msg("enrich: ссылка не разрешилась")
			}
			metrics.IncEnrichmentDrop("unresolved_link")
			return domain.Recommendation{}, false
		}
		title = CleanTitle(html.UnescapeString(meta.Title))
		image = meta.Image
	} else if item.Type == domain.MediaMovie || item.Type == domain.MediaTVShow {
		meta, err := e.searchTitle(ctx, title, item.Type)
		if err != nil {
			e.log.Debug().Err(err).Str("title", title).Msg("enrich: поиск по названию не удался")
		} else if meta != nil {
			title = meta.Title
			image = meta.Image
		}
	}

	if title == "" {
		metrics.IncEnrichmentDrop("empty_title")
		return domain.Recommendation{}, false
	}

	return domain.Recommendation{
		Title: title,
		Type:  strings.TrimSpace(item.Type),
		MentionedBy: domain.Mention{
			Sender:    strings.TrimSpace(item.Sender),
			Timestamp: strings.TrimSpace(item.Timestamp),
		},
		Link:     link,
		ImageURL: image,
	}, true
}

func (e *Enricher) resolveLink(ctx context.Context, u string) (domain.LinkMeta, error) {
	key := "og:" + u
	var meta domain.LinkMeta
	if e.cacheGet(ctx, key, &meta) {
		return meta, nil
	}
	meta, err := e.links.Resolve(ctx, u)
	if err != nil {
		return domain.LinkMeta{}, err
	}
	if meta.Title != "" {
		e.cacheSet(ctx, key, meta)
	}
	return meta, nil
}

func (e *Enricher) searchTitle(ctx context.Context, title, mediaType string) (*domain.TitleMeta, error) {
	key := "tmdb:" + mediaType + ":" + strings.ToLower(title)
	var meta domain.TitleMeta
	if e.cacheGet(ctx, key, &meta) {
		return &meta, nil
	}
	found, err := e.titles.Search(ctx, title, mediaType)
	if err != nil || found == nil {
		return found, err
	}
	e.cacheSet(ctx, key, *found)
	return found, nil
}

// cacheGet читает значение из кэша, промахи и ошибки равнозначны.
func (e *Enricher) cacheGet(ctx context.Context, key string, dst any) bool {
	if e.cache == nil {
		return false
	}
	raw, err := e.cache.Get(ctx, key)
	if err != nil || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (e *Enricher) cacheSet(ctx context.Context, key string, value any) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, cacheTTL); err != nil {
		e.log.Debug().Err(err).Str("key", key).Msg("enrich: кэш недоступен")
	}
}
