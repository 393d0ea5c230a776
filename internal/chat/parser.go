package chat

import (
	"regexp"
	"strings"

	"chatrex/internal/domain"
)

var headerPattern = regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}),\s+(\d{1,2}:\d{2}:\d{2})[\x{202f}\x{00a0} ]?((?i:AM|PM))\]\s+(.*)$`)

// Parse разбивает сырой текст экспорта на последовательность сообщений.
// Строка с заголовком "[таймстемп] отправитель: текст" начинает новое
// сообщение, остальные непустые строки приклеиваются к текущему телу через
// перевод строки. Всё до первого заголовка отбрасывается. Порядок сообщений
// совпадает с порядком во входном тексте.
func Parse(text string) []domain.Message {
	var out []domain.Message
	var current *domain.Message

	for _, rawLine := range strings.Split(text, "\n") {
		rawLine = strings.TrimSuffix(rawLine, "\r")
		m := headerPattern.FindStringSubmatch(rawLine)
		if m == nil {
			if current == nil {
				continue
			}
			line := strings.TrimSpace(rawLine)
			if line != "" {
				current.Text += "\n" + line
			}
			continue
		}
		if current != nil {
			out = append(out, *current)
		}
		ts := m[1] + ", " + m[2] + " " + strings.ToUpper(m[3])
		rest := m[4]
		sender, body := splitSender(rest)
		current = &domain.Message{Timestamp: ts, Sender: sender, Text: body}
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}

// splitSender отделяет отправителя от тела по первому ": ". Сообщения без
// разделителя считаются системными: отправитель пуст, весь остаток — тело.
func splitSender(rest string) (sender, body string) {
	idx := strings.Index(rest, ": ")
	if idx < 0 {
		return "", strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+2:])
}
