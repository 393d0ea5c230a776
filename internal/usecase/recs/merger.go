package recs

import (
	"context"

	"github.com/rs/zerolog"

	"chatrex/internal/chat"
	"chatrex/internal/domain"
	"chatrex/internal/infra/metrics"
)

// Service сливает обогащённые рекомендации с уже сохранёнными записями.
type Service struct {
	repo domain.RecommendationRepo
	log  zerolog.Logger
}

// NewService создаёт сервис слияния.
func NewService(repo domain.RecommendationRepo, logger zerolog.Logger) *Service {
	return &Service{repo: repo, log: logger}
}

type group struct {
	mediaType string
	link      string
	image     string
	mentions  []domain.Mention
}

// SaveBatch записывает рекомендации одного батча. Кандидаты группируются по
// точному названию, упоминания дедуплицируются по паре (отправитель, дата);
// несколько упоминаний одним человеком за день схлопываются в одно.
// Записи выполняются последовательно и независимо: сбой одной записи
// логируется и пропускается, остальные продолжаются. Возвращается список
// успешно записанного — его длина не обязана совпадать с числом кандидатов.
func (s *Service) SaveBatch(ctx context.Context, items []domain.Recommendation) []domain.StoredRecommendation {
	groups, order := groupAndDedupe(items)
	if len(order) == 0 {
		return nil
	}

	existing := s.fetchExisting(ctx, order)

	var written []domain.StoredRecommendation
	for _, title := range order {
		g := groups[title]
		if record, ok := existing[title]; ok {
			merged := MergeMentions(record.MentionedBy, g.mentions)
			if len(merged) <= len(record.MentionedBy) {
				// Ничего нового — запись не трогаем.
				continue
			}
			if err := s.repo.UpdateMentions(ctx, record.ID, merged); err != nil {
				metrics.IncRecommendationWrite("update", err)
				s.log.Error().Err(err).Str("title", title).Msg("store: обновление записи не удалось")
				continue
			}
			metrics.IncRecommendationWrite("update", nil)
			record.MentionedBy = merged
			written = append(written, record)
			continue
		}

		created, err := s.repo.Create(ctx, domain.StoredRecommendation{
			Title:       title,
			Type:        g.mediaType,
			MentionedBy: g.mentions,
			Link:        g.link,
			ImageURL:    g.image,
		})
		if err != nil {
			metrics.IncRecommendationWrite("create", err)
			s.log.Error().Err(err).Str("title", title).Msg("store: создание записи не удалось")
			continue
		}
		metrics.IncRecommendationWrite("create", nil)
		written = append(written, created)
	}
	return written
}

// fetchExisting забирает сохранённые записи по списку названий одним
// запросом. Ошибка чтения намеренно глотается как «записей нет» (fail-open):
// лучше рискнуть дубликатом, чем потерять батч.
func (s *Service) fetchExisting(ctx context.Context, titles []string) map[string]domain.StoredRecommendation {
	records, err := s.repo.ListByTitles(ctx, titles)
	if err != nil {
		s.log.Error().Err(err).Msg("store: чтение существующих записей не удалось, считаем что их нет")
		return nil
	}
	byTitle := make(map[string]domain.StoredRecommendation, len(records))
	for _, record := range records {
		byTitle[record.Title] = record
	}
	return byTitle
}

// groupAndDedupe группирует кандидатов по названию, отбрасывая повторные
// упоминания с той же парой (отправитель, дата). Порядок первых появлений
// названий сохраняется.
func groupAndDedupe(items []domain.Recommendation) (map[string]*group, []string) {
	groups := make(map[string]*group)
	var order []string
	for _, item := range items {
		g, ok := groups[item.Title]
		if !ok {
			g = &group{mediaType: item.Type, link: item.Link, image: item.ImageURL}
			groups[item.Title] = g
			order = append(order, item.Title)
		}
		if containsMention(g.mentions, item.MentionedBy) {
			continue
		}
		g.mentions = append(g.mentions, item.MentionedBy)
	}
	return groups, order
}

// MergeMentions добавляет к существующим упоминаниям новые, пропуская
// дубликаты по (отправитель, дата) против всего существующего списка.
func MergeMentions(existing, incoming []domain.Mention) []domain.Mention {
	merged := make([]domain.Mention, len(existing))
	copy(merged, existing)
	for _, mention := range incoming {
		if containsMention(existing, mention) {
			continue
		}
		merged = append(merged, mention)
	}
	return merged
}

func containsMention(mentions []domain.Mention, candidate domain.Mention) bool {
	date := chat.MentionDate(candidate.Timestamp)
	for _, m := range mentions {
		if m.Sender == candidate.Sender && chat.MentionDate(m.Timestamp) == date {
			return true
		}
	}
	return false
}
