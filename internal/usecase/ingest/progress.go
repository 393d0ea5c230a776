package ingest

import (
	"errors"
	"fmt"
	"time"

	"chatrex/internal/chat"
	"chatrex/internal/domain"
)

// ErrIncompatibleExport возвращается, когда чекпоинт не удаётся привязать к
// загруженному экспорту. Автоматический повтор здесь не поможет — нужно
// вмешательство оператора.
var ErrIncompatibleExport = errors.New("экспорт несовместим с сохранённым прогрессом")

// ResolveResume определяет индекс, с которого продолжать обработку.
// Пустой чекпоинт — обрабатывать всё с нуля. Иначе точка возобновления —
// сообщение чекпоинта плюс один: сначала точное совпадение нормализованного
// таймстемпа, потом ближайший момент в пределах tolerance. Индекс, равный
// длине последовательности, означает «уже обработано всё».
func ResolveResume(msgs []domain.Message, checkpoint string, tolerance time.Duration) (int, error) {
	if chat.NormalizeTimestamp(checkpoint) == "" {
		return 0, nil
	}
	idx := chat.LocateIndex(msgs, checkpoint, tolerance)
	if idx < 0 {
		return 0, fmt.Errorf("%w: чекпоинт %q не найден", ErrIncompatibleExport, checkpoint)
	}
	return idx + 1, nil
}
