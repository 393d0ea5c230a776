package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatrex/internal/domain"
)

func tmdbServer(t *testing.T, wantEndpoint string, results []searchResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search/"+wantEndpoint) {
			t.Errorf("ожидали путь /search/%s, получили %s", wantEndpoint, r.URL.Path)
		}
		if r.URL.Query().Get("api_key") == "" {
			t.Error("в запросе нет api_key")
		}
		json.NewEncoder(w).Encode(searchResponse{Results: results})
	}))
}

func TestTMDBSearchExactMatchWins(t *testing.T) {
	srv := tmdbServer(t, "movie", []searchResult{
		{Title: "Dune: Part Two", Popularity: 900, PosterPath: "/part-two.jpg"},
		{Title: "Dune", Popularity: 500, PosterPath: "/dune.jpg"},
	})
	defer srv.Close()

	client := NewTMDB("key", srv.URL, time.Second)
	meta, err := client.Search(context.Background(), "dune", domain.MediaMovie)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if meta == nil || meta.Title != "Dune" {
		t.Fatalf("точное совпадение должно побеждать популярность: %+v", meta)
	}
	if meta.Image != posterBaseURL+"/dune.jpg" {
		t.Fatalf("постер собран неверно: %q", meta.Image)
	}
}

func TestTMDBSearchFallsBackToMostPopular(t *testing.T) {
	srv := tmdbServer(t, "tv", []searchResult{
		{Name: "Severance Recap", Popularity: 10},
		{Name: "Severance S2", Popularity: 800, BackdropPath: "/sev.jpg"},
	})
	defer srv.Close()

	client := NewTMDB("key", srv.URL, time.Second)
	meta, err := client.Search(context.Background(), "разделение", domain.MediaTVShow)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if meta == nil || meta.Title != "Severance S2" {
		t.Fatalf("без точного совпадения берётся самый популярный: %+v", meta)
	}
	if meta.Image != posterBaseURL+"/sev.jpg" {
		t.Fatalf("backdrop должен подменять отсутствующий постер: %q", meta.Image)
	}
}

func TestTMDBSearchEmptyResults(t *testing.T) {
	srv := tmdbServer(t, "movie", nil)
	defer srv.Close()

	meta, err := NewTMDB("key", srv.URL, time.Second).Search(context.Background(), "неизвестный фильм", domain.MediaMovie)
	if err != nil {
		t.Fatalf("пустая выдача не ошибка: %v", err)
	}
	if meta != nil {
		t.Fatalf("ожидали nil, получили %+v", meta)
	}
}

func TestTMDBSearchWithoutKeyIsNoop(t *testing.T) {
	client := NewTMDB("", "http://127.0.0.1:1", time.Second)
	meta, err := client.Search(context.Background(), "Дюна", domain.MediaMovie)
	if err != nil || meta != nil {
		t.Fatalf("без ключа поиск отключён: meta=%+v err=%v", meta, err)
	}
}
