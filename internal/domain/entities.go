package domain

// Типы контента, которые умеет извлекать экстрактор.
const (
	MediaBook    = "book"
	MediaMovie   = "movie"
	MediaTVShow  = "tv_show"
	MediaSong    = "song"
	MediaYouTube = "youtube"
)

// Message представляет одно сообщение экспорта чата.
type Message struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// Anchor связывает опорный таймстемп с анонимной меткой отправителя.
type Anchor struct {
	Timestamp string
	Label     string
}

// Mention фиксирует одно упоминание рекомендации.
type Mention struct {
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Candidate — сырой результат извлечения, данным доверять нельзя.
type Candidate struct {
	Title     string `json:"title"`
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// Recommendation — обогащённый кандидат перед записью в хранилище.
type Recommendation struct {
	Title       string
	Type        string
	MentionedBy Mention
	Link        string
	ImageURL    string
}

// StoredRecommendation — сохранённая запись с опознавателем хранилища.
type StoredRecommendation struct {
	ID          string
	Title       string
	Type        string
	MentionedBy []Mention
	Link        string
	ImageURL    string
}

// LinkMeta содержит метаданные страницы по ссылке.
type LinkMeta struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

// TitleMeta содержит результат поиска по названию.
type TitleMeta struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

// TokenUsage агрегирует расход токенов LLM.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add суммирует расход.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// VerifyResult — ответ серверной проверки подлинности экспорта.
type VerifyResult struct {
	OK                bool   `json:"ok"`
	ProgressTimestamp string `json:"progressTimestamp"`
}

// BatchResult — ответ на обработку одного батча сообщений.
type BatchResult struct {
	OK                bool       `json:"ok"`
	ProgressTimestamp string     `json:"progressTimestamp"`
	Usage             TokenUsage `json:"usage"`
}
