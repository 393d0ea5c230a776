package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"chatrex/internal/domain"
	openai "chatrex/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const systemPrompt = "You are a precise data extractor. Respond only with valid JSON."

const extractionPrompt = `Core task: Extract media recommendations from Hinglish chat.
Output: Strict JSON array [{title, type, sender, timestamp}]

Types: book | movie | tv_show | song | youtube

Link handling (highest priority):
- If the message contains a URL that fits one of our types (Spotify, Apple Music, YouTube, SoundCloud, Netlfix), set "title" to the URL exactly as it appears.
- Do NOT replace a URL with track/movie names or artists. Never infer names when a URL is present.
- If both text and a URL exist in the same message, prefer the URL.

Classification rules:
- Link with Spotify/Apple Music → song
- Link with YouTube → youtube
- Text-only songs:
    - Require high confidence that the message is actually a song.
    - Do NOT classify ambiguous words or messages as songs.
    - Neutral/positive mentions still count as recommendations; clearly negative mentions are excluded.
- Movies/TV: STRICT. Need explicit recommendation or very enthusiastic intent. Series title only, no season/episode.
- Books: Include intent to read
- EXCLUDE: sports events, generic activities or anything that cannot be mapped to a specific book/movie/tv_show/song/youtube.

Title formatting:
- Canonical English title with articles (The/A/An)
- Songs: "Title — Artist"
- Fix typos: 'social network' → 'The Social Network'

Copy timestamp exactly from message.`

// OpenAI реализует domain.Extractor через Chat Completions.
type OpenAI struct {
	client chatClient
	model  string
}

var _ domain.Extractor = (*OpenAI)(nil)

// NewOpenAI создаёт экстрактор рекомендаций.
func NewOpenAI(client chatClient, model string) *OpenAI {
	if model == "" {
		model = "gpt-5-mini"
	}
	return &OpenAI{client: client, model: model}
}

// Extract прогоняет батч сообщений через LLM и разбирает строгий JSON-массив
// кандидатов. Невалидный вывод модели считается пустым результатом, а не
// ошибкой: кандидаты недоверенные, обогащение и слияние переживут пустоту.
func (e *OpenAI) Extract(ctx context.Context, batch []domain.Message) ([]domain.Candidate, domain.TokenUsage, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("extractor: marshal batch: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: extractionPrompt + "\n\nMessages (JSON):\n" + string(payload)},
		},
	}
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("extractor: completion: %w", err)
	}

	var usage domain.TokenUsage
	if resp.Usage != nil {
		usage = domain.TokenUsage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	}
	if len(resp.Choices) == 0 {
		return nil, usage, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = stripCodeFence(content)

	var candidates []domain.Candidate
	if err := json.Unmarshal([]byte(content), &candidates); err != nil {
		return nil, usage, nil
	}
	return candidates, usage, nil
}

// stripCodeFence срезает обрамление ```json, которое модели любят добавлять
// вопреки инструкции.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
