package enrich

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"chatrex/internal/domain"
	"chatrex/internal/infra/metrics"
)

// userAgent выбран так, чтобы стриминговые сервисы отдавали OG-разметку.
const userAgent = "Mozilla/5.0 (compatible; Twitterbot/1.0)"

// OGResolver достаёт og:title и og:image со страницы по ссылке.
type OGResolver struct {
	http    *http.Client
	timeout time.Duration
}

var _ domain.LinkResolver = (*OGResolver)(nil)

// NewOGResolver создаёт резолвер с ограничением времени на один запрос.
// Таймаут здесь обязателен: один медленный сторонний сайт не должен
// останавливать обработку всего батча.
func NewOGResolver(timeout time.Duration) *OGResolver {
	if timeout <= 0 {
		timeout = 3500 * time.Millisecond
	}
	return &OGResolver{http: &http.Client{Timeout: timeout}, timeout: timeout}
}

// Resolve запрашивает страницу и вынимает OG-метаданные. Отсутствие
// og:title — не ошибка: возвращается пустой LinkMeta, решение об отбросе
// кандидата принимает вызывающий.
func (r *OGResolver) Resolve(ctx context.Context, url string) (domain.LinkMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.LinkMeta{}, fmt.Errorf("og: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("og", "fetch", "page", start, err)
		return domain.LinkMeta{}, fmt.Errorf("og: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err = fmt.Errorf("og: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("og", "fetch", "page", start, err)
		return domain.LinkMeta{}, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("og", "fetch", "page", start, err)
		return domain.LinkMeta{}, fmt.Errorf("og: parse html: %w", err)
	}
	metrics.ObserveNetworkRequest("og", "fetch", "page", start, nil)

	var meta domain.LinkMeta
	meta.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	meta.Image, _ = doc.Find(`meta[property="og:image"]`).Attr("content")
	return meta, nil
}
