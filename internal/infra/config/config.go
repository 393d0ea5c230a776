package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"chatrex/internal/domain"
)

// Опорные таймстемпы экспорта по умолчанию и их анонимные метки.
var defaultAnchors = []domain.Anchor{
	{Timestamp: "02/12/23, 7:27:49 AM", Label: "A"},
	{Timestamp: "18/12/23, 2:24:03 PM", Label: "D"},
	{Timestamp: "09/07/24, 2:20:25 PM", Label: "P"},
	{Timestamp: "18/08/24, 10:57:29 AM", Label: "R"},
}

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// ChatHash — эталонный отпечаток экспорта в hex. Хранится только на
	// сервере и наружу не отдаётся.
	ChatHash string `envconfig:"CHAT_HASH"`
	// APISecret защищает API одним общим секретом; пустое значение
	// отключает проверку.
	APISecret string `envconfig:"API_SHARED_SECRET"`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-5-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"120s"`
	} `envconfig:""`

	TMDB struct {
		APIKey  string `envconfig:"TMDB_API_KEY"`
		BaseURL string `envconfig:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3"`
	} `envconfig:""`

	Ingest struct {
		// Anchors задаются парами "таймстемп|метка" через точку с запятой.
		Anchors           string        `envconfig:"ANCHOR_TIMESTAMPS"`
		BatchSize         int           `envconfig:"BATCH_SIZE" default:"50"`
		Tolerance         time.Duration `envconfig:"TIMESTAMP_TOLERANCE" default:"2s"`
		OGTimeout         time.Duration `envconfig:"OG_FETCH_TIMEOUT" default:"3500ms"`
		EnrichConcurrency int           `envconfig:"ENRICH_CONCURRENCY" default:"6"`

		InputCostPerMillion  float64 `envconfig:"INPUT_COST_PER_MILLION" default:"0.25"`
		OutputCostPerMillion float64 `envconfig:"OUTPUT_COST_PER_MILLION" default:"2.0"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Anchors разбирает список опорных таймстемпов. При пустой переменной
// окружения возвращаются значения по умолчанию.
func (c AppConfig) Anchors() []domain.Anchor {
	raw := strings.TrimSpace(c.Ingest.Anchors)
	if raw == "" {
		return defaultAnchors
	}
	var anchors []domain.Anchor
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ts, label, found := strings.Cut(pair, "|")
		if !found {
			log.Fatalf("ANCHOR_TIMESTAMPS: ожидался формат 'таймстемп|метка', получено %q", pair)
		}
		anchors = append(anchors, domain.Anchor{Timestamp: strings.TrimSpace(ts), Label: strings.TrimSpace(label)})
	}
	return anchors
}
