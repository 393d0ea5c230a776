package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatrex/internal/domain"
	"chatrex/internal/infra/metrics"
)

const (
	defaultTMDBBaseURL = "https://api.themoviedb.org/3"
	posterBaseURL      = "https://image.tmdb.org/t/p/w185"
)

// TMDB ищет канонические названия фильмов и сериалов.
type TMDB struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

var _ domain.TitleSearcher = (*TMDB)(nil)

// NewTMDB создаёт клиента поиска.
func NewTMDB(apiKey, baseURL string, timeout time.Duration) *TMDB {
	if baseURL == "" {
		baseURL = defaultTMDBBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TMDB{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Popularity   float64 `json:"popularity"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
}

// Search ищет фильм или сериал по названию. Из выдачи берётся точное
// совпадение нормализованного названия, иначе самый популярный результат.
// Пустая выдача — nil без ошибки: кандидат просто останется без постера.
func (t *TMDB) Search(ctx context.Context, title, mediaType string) (*domain.TitleMeta, error) {
	if t.apiKey == "" {
		return nil, nil
	}
	isTVShow := mediaType == domain.MediaTVShow
	endpoint := "movie"
	if isTVShow {
		endpoint = "tv"
	}

	query := url.Values{}
	query.Set("api_key", t.apiKey)
	query.Set("query", title)
	query.Set("language", "en-US")
	query.Set("include_adult", "false")
	requestURL := fmt.Sprintf("%s/search/%s?%s", t.baseURL, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("tmdb: build request: %w", err)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("tmdb", "search", endpoint, start, err)
		return nil, fmt.Errorf("tmdb: search %q: %w", title, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err = fmt.Errorf("tmdb: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("tmdb", "search", endpoint, start, err)
		return nil, err
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.ObserveNetworkRequest("tmdb", "search", endpoint, start, err)
		return nil, fmt.Errorf("tmdb: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("tmdb", "search", endpoint, start, nil)

	chosen := pickResult(parsed.Results, title, isTVShow)
	if chosen == nil {
		return nil, nil
	}

	resolved := chosen.Title
	if isTVShow {
		resolved = chosen.Name
	}
	if resolved == "" {
		resolved = title
	}

	meta := &domain.TitleMeta{Title: resolved}
	if img := firstNonEmpty(chosen.PosterPath, chosen.BackdropPath); img != "" {
		meta.Image = posterBaseURL + img
	}
	return meta, nil
}

func pickResult(results []searchResult, title string, isTVShow bool) *searchResult {
	if len(results) == 0 {
		return nil
	}
	normalized := strings.ToLower(strings.TrimSpace(title))
	for i := range results {
		name := results[i].Title
		if isTVShow {
			name = results[i].Name
		}
		if strings.ToLower(strings.TrimSpace(name)) == normalized {
			return &results[i]
		}
	}
	best := &results[0]
	for i := range results[1:] {
		if results[i+1].Popularity > best.Popularity {
			best = &results[i+1]
		}
	}
	return best
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
