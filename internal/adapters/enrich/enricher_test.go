package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatrex/internal/domain"
)

type fakeLinks struct {
	mu    sync.Mutex
	calls int
	metas map[string]domain.LinkMeta
	err   error
}

func (f *fakeLinks) Resolve(_ context.Context, u string) (domain.LinkMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.LinkMeta{}, f.err
	}
	return f.metas[u], nil
}

type fakeTitles struct {
	mu    sync.Mutex
	calls int
	metas map[string]*domain.TitleMeta
}

func (f *fakeTitles) Search(_ context.Context, title, _ string) (*domain.TitleMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.metas[title], nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) WithLease(_ context.Context, _ string, _ time.Duration, fn func() error) error {
	return fn()
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func candidate(title, mediaType string) domain.Candidate {
	return domain.Candidate{Title: title, Type: mediaType, Sender: "A", Timestamp: "02/12/23, 7:27:49 AM"}
}

func TestEnrichAllResolvesLink(t *testing.T) {
	links := &fakeLinks{metas: map[string]domain.LinkMeta{
		"https://music.apple.com/track/1": {Title: "Bohemian Rhapsody on Apple Music", Image: "https://img/cover.jpg"},
	}}
	enricher := NewEnricher(links, &fakeTitles{}, nil, 0, zerolog.Nop())

	out := enricher.EnrichAll(context.Background(), []domain.Candidate{
		candidate("https://music.apple.com/track/1", "song"),
	})
	if len(out) != 1 {
		t.Fatalf("ожидали одну рекомендацию, получили %d", len(out))
	}
	if out[0].Title != "Bohemian Rhapsody" {
		t.Fatalf("маркетинговый хвост не срезан: %q", out[0].Title)
	}
	if out[0].Link != "https://music.apple.com/track/1" || out[0].ImageURL != "https://img/cover.jpg" {
		t.Fatalf("ссылка или картинка потерялись: %+v", out[0])
	}
}

func TestEnrichAllDropsUnresolvedLink(t *testing.T) {
	links := &fakeLinks{err: errors.New("таймаут")}
	enricher := NewEnricher(links, &fakeTitles{}, nil, 0, zerolog.Nop())

	out := enricher.EnrichAll(context.Background(), []domain.Candidate{
		candidate("https://dead.example.com/x", "song"),
		candidate("Дюна", "movie"),
	})
	if len(out) != 1 || out[0].Title != "Дюна" {
		t.Fatalf("нерезолвящаяся ссылка отбрасывается, остальное живёт: %+v", out)
	}
}

func TestEnrichAllSearchMissDegrades(t *testing.T) {
	titles := &fakeTitles{metas: map[string]*domain.TitleMeta{}}
	enricher := NewEnricher(&fakeLinks{}, titles, nil, 0, zerolog.Nop())

	out := enricher.EnrichAll(context.Background(), []domain.Candidate{
		candidate("Неизвестный фильм", "movie"),
	})
	if len(out) != 1 {
		t.Fatalf("промах поиска не должен отбрасывать кандидата: %+v", out)
	}
	if out[0].Title != "Неизвестный фильм" || out[0].ImageURL != "" {
		t.Fatalf("ожидали деградацию до «без постера»: %+v", out[0])
	}
}

func TestEnrichAllCanonizesFoundTitle(t *testing.T) {
	titles := &fakeTitles{metas: map[string]*domain.TitleMeta{
		"дюна": {Title: "Dune", Image: "https://img/dune.jpg"},
	}}
	enricher := NewEnricher(&fakeLinks{}, titles, nil, 0, zerolog.Nop())

	out := enricher.EnrichAll(context.Background(), []domain.Candidate{candidate("дюна", "movie")})
	if len(out) != 1 || out[0].Title != "Dune" || out[0].ImageURL != "https://img/dune.jpg" {
		t.Fatalf("каноническое название не применилось: %+v", out)
	}
}

func TestEnrichAllPreservesOrder(t *testing.T) {
	// Кандидатов больше лимита подбатча: порядок всё равно входной.
	var items []domain.Candidate
	for i := 0; i < 15; i++ {
		items = append(items, candidate(fmt.Sprintf("Книга %02d", i), "book"))
	}
	enricher := NewEnricher(&fakeLinks{}, &fakeTitles{}, nil, 6, zerolog.Nop())

	out := enricher.EnrichAll(context.Background(), items)
	if len(out) != len(items) {
		t.Fatalf("ожидали %d рекомендаций, получили %d", len(items), len(out))
	}
	for i, rec := range out {
		if want := fmt.Sprintf("Книга %02d", i); rec.Title != want {
			t.Fatalf("порядок нарушен на позиции %d: %q", i, rec.Title)
		}
	}
}

func TestEnrichAllUsesCache(t *testing.T) {
	links := &fakeLinks{metas: map[string]domain.LinkMeta{
		"https://youtu.be/abc": {Title: "Клип"},
	}}
	cache := newMemCache()
	enricher := NewEnricher(links, &fakeTitles{}, cache, 0, zerolog.Nop())

	in := []domain.Candidate{candidate("https://youtu.be/abc", "youtube")}
	enricher.EnrichAll(context.Background(), in)
	enricher.EnrichAll(context.Background(), in)

	if links.calls != 1 {
		t.Fatalf("повторный запрос должен идти из кэша, было %d обращений", links.calls)
	}
}

func TestEnrichAllDropsEmptyTitle(t *testing.T) {
	enricher := NewEnricher(&fakeLinks{}, &fakeTitles{}, nil, 0, zerolog.Nop())
	out := enricher.EnrichAll(context.Background(), []domain.Candidate{candidate("   ", "book")})
	if len(out) != 0 {
		t.Fatalf("пустое название отбрасывается: %+v", out)
	}
}
