package chat

import (
	"regexp"
	"strings"
)

// Служебные уведомления WhatsApp, которые не несут контента.
var noticeMarkers = []string{
	"messages and calls are end-to-end encrypted",
	"created this group",
	"changed the subject",
	"changed this group's icon",
	"deleted this message",
	"you deleted this message",
	"missed voice call",
	"missed video call",
}

var mediaOmittedPattern = regexp.MustCompile(`(?i)^[\x{200e}\x{200f}]?(image|video|gif|sticker|audio|document) omitted`)

// IsSkippable сообщает, что тело сообщения — системный шум и в дальнейшую
// обработку не идёт. Пустой текст тоже пропускается.
func IsSkippable(text string) bool {
	if text == "" {
		return true
	}
	lc := strings.ToLower(text)
	for _, marker := range noticeMarkers {
		if strings.Contains(lc, marker) {
			return true
		}
	}
	return mediaOmittedPattern.MatchString(text)
}
