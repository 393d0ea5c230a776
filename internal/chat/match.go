package chat

import (
	"time"

	"chatrex/internal/domain"
)

// ExactIndex возвращает индекс первого сообщения с совпадающим
// нормализованным таймстемпом, либо -1.
func ExactIndex(msgs []domain.Message, timestamp string) int {
	target := NormalizeTimestamp(timestamp)
	for i, msg := range msgs {
		if NormalizeTimestamp(msg.Timestamp) == target {
			return i
		}
	}
	return -1
}

// ClosestIndex ищет сообщение, момент которого ближе всего к target и
// отличается не более чем на tolerance. При равной близости побеждает
// первое встреченное. Возвращает -1, если подходящих нет.
func ClosestIndex(msgs []domain.Message, target time.Time, tolerance time.Duration) int {
	bestIdx := -1
	bestDiff := tolerance + 1
	for i, msg := range msgs {
		instant, ok := ParseTimestamp(msg.Timestamp)
		if !ok {
			continue
		}
		diff := instant.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance && diff < bestDiff {
			bestDiff = diff
			bestIdx = i
			if diff == 0 {
				break
			}
		}
	}
	return bestIdx
}

// LocateIndex сочетает точное и нечёткое совпадение: сначала ищется точное
// совпадение нормализованной строки, затем ближайший момент в пределах
// tolerance. Возвращает -1, если таймстемп не удалось привязать.
func LocateIndex(msgs []domain.Message, timestamp string, tolerance time.Duration) int {
	if idx := ExactIndex(msgs, timestamp); idx >= 0 {
		return idx
	}
	target, ok := ParseTimestamp(timestamp)
	if !ok {
		return -1
	}
	return ClosestIndex(msgs, target, tolerance)
}
