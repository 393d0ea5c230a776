package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatrex/internal/chat"
	"chatrex/internal/domain"
)

// State — этап сессии загрузки.
type State string

const (
	StateIdle        State = "idle"
	StateVerifying   State = "verifying"
	StateResolving   State = "resolving"
	StateDispatching State = "dispatching"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

// ErrHashMismatch возвращается при несовпадении отпечатка с сервером.
var ErrHashMismatch = errors.New("экспорт не совпал с ожидаемой группой")

// ErrUpToDate сигнализирует, что новых сообщений после чекпоинта нет.
var ErrUpToDate = errors.New("новых сообщений нет")

// ErrExtractionFailed возвращается, когда сервер отклонил батч. Ошибка
// переходная: чекпоинт не сдвигался, повтор продолжит с того же места.
var ErrExtractionFailed = errors.New("сервер не смог обработать батч")

// Config задаёт параметры сессии.
type Config struct {
	Anchors              []domain.Anchor
	Tolerance            time.Duration
	BatchSize            int
	InputCostPerMillion  float64
	OutputCostPerMillion float64
}

// Progress — накопленные счётчики сессии.
type Progress struct {
	ProcessedMessages int
	TotalMessages     int
	ProcessedBatches  int
	TotalBatches      int
	Usage             domain.TokenUsage
}

type sessionMessage struct {
	domain.Message
	normalized string
}

// Session ведёт одну загрузку экспорта от проверки до последнего батча.
// Конечный автомат: Idle → Verifying → Resolving → Dispatching →
// Complete | Failed. Батчи уходят строго последовательно: чекпоинт обязан
// двигаться в порядке сообщений, параллельная отправка сломала бы
// возобновляемость.
type Session struct {
	cfg     Config
	verify  domain.VerifyClient
	extract domain.ExtractClient
	log     zerolog.Logger

	state    State
	eligible []sessionMessage
	cursor   int
	progress Progress
}

// NewSession создаёт сессию в состоянии Idle.
func NewSession(cfg Config, verify domain.VerifyClient, extract domain.ExtractClient, logger zerolog.Logger) *Session {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Session{cfg: cfg, verify: verify, extract: extract, log: logger, state: StateIdle}
}

// State возвращает текущий этап сессии.
func (s *Session) State() State { return s.state }

// Progress возвращает счётчики сессии.
func (s *Session) Progress() Progress { return s.progress }

// Cost оценивает стоимость израсходованных токенов в долларах.
func (s *Session) Cost() float64 {
	in := float64(s.progress.Usage.PromptTokens) / 1e6 * s.cfg.InputCostPerMillion
	out := float64(s.progress.Usage.CompletionTokens) / 1e6 * s.cfg.OutputCostPerMillion
	return in + out
}

// Start проверяет подлинность экспорта и находит точку возобновления.
// Последовательность сообщений вычисляется один раз: повторных чтений
// транскрипта в ходе сессии не бывает. Ошибки входных данных (чужой файл,
// несовпавший отпечаток) возвращают сессию в Idle; сетевые сбои и
// непривязываемый чекпоинт переводят её в Failed.
func (s *Session) Start(ctx context.Context, raw string) error {
	s.state = StateVerifying
	msgs := chat.Parse(raw)

	resolution, err := ResolveAnchors(msgs, s.cfg.Anchors, s.cfg.Tolerance)
	if err != nil {
		s.state = StateIdle
		return err
	}
	verdict, err := s.verify.VerifyChat(ctx, resolution.Digest)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("проверка экспорта: %w", err)
	}
	if !verdict.OK {
		s.state = StateIdle
		return ErrHashMismatch
	}

	s.state = StateResolving
	anonymized := anonymize(msgs, resolution.SenderLabels)
	resume, err := ResolveResume(anonymized, verdict.ProgressTimestamp, s.cfg.Tolerance)
	if err != nil {
		s.state = StateFailed
		return err
	}

	for _, msg := range anonymized[resume:] {
		if chat.IsSkippable(msg.Text) {
			continue
		}
		s.eligible = append(s.eligible, sessionMessage{Message: msg, normalized: chat.NormalizeTimestamp(msg.Timestamp)})
	}
	s.progress.TotalMessages = len(s.eligible)
	s.progress.TotalBatches = (len(s.eligible) + s.cfg.BatchSize - 1) / s.cfg.BatchSize

	if len(s.eligible) == 0 {
		s.state = StateComplete
		return ErrUpToDate
	}
	s.state = StateDispatching
	return nil
}

// Run гонит подходящие сообщения батчами через сервер. Остановка по
// контексту кооперативная: текущий батч довозится до конца, следующий не
// уходит. При сбое сессия переходит в Failed, курсор остаётся на
// неотправленном батче.
func (s *Session) Run(ctx context.Context) error {
	if s.state != StateDispatching {
		return fmt.Errorf("сессия не готова к отправке: состояние %s", s.state)
	}
	for s.cursor < len(s.eligible) {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(s.cursor+s.cfg.BatchSize, len(s.eligible))
		batch := make([]domain.Message, 0, end-s.cursor)
		for _, msg := range s.eligible[s.cursor:end] {
			batch = append(batch, msg.Message)
		}

		result, err := s.extract.ExtractBatch(ctx, batch)
		if err != nil {
			s.state = StateFailed
			return fmt.Errorf("отправка батча: %w", err)
		}
		if !result.OK {
			s.state = StateFailed
			return ErrExtractionFailed
		}

		s.progress.ProcessedMessages += len(batch)
		s.progress.ProcessedBatches++
		s.progress.Usage.Add(result.Usage)
		s.advance(end, result.ProgressTimestamp)

		s.log.Info().
			Int("batch", s.progress.ProcessedBatches).
			Int("of", s.progress.TotalBatches).
			Int("messages", s.progress.ProcessedMessages).
			Msg("батч обработан")
	}
	s.state = StateComplete
	return nil
}

// Retry возобновляет отправку после сбоя с того же батча.
func (s *Session) Retry(ctx context.Context) error {
	if s.state != StateFailed {
		return fmt.Errorf("повтор возможен только после сбоя: состояние %s", s.state)
	}
	s.state = StateDispatching
	return s.Run(ctx)
}

// advance сдвигает курсор по чекпоинту сервера; без него — на конец батча.
func (s *Session) advance(fallback int, serverTimestamp string) {
	if serverTimestamp == "" {
		s.cursor = fallback
		return
	}
	normalized := chat.NormalizeTimestamp(serverTimestamp)
	for i := s.cursor; i < len(s.eligible); i++ {
		if s.eligible[i].normalized == normalized {
			s.cursor = i + 1
			return
		}
	}
	s.cursor = fallback
}

// anonymize заменяет отправителей на метки из карты анкеров.
func anonymize(msgs []domain.Message, labels map[string]string) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, msg := range msgs {
		if label, ok := labels[msg.Sender]; ok {
			msg.Sender = label
		}
		out[i] = msg
	}
	return out
}
