package chat

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timestampPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4}),\s+(\d{1,2}):(\d{2}):(\d{2}) (AM|PM)$`)

// NormalizeTimestamp приводит строку таймстемпа к каноничному виду:
// узкие и неразрывные пробелы заменяются обычными, края обрезаются.
// Функция идемпотентна.
func NormalizeTimestamp(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}

// ParseTimestamp разбирает таймстемп формата "D/M/YY, H:MM:SS AM" в момент
// времени UTC. День идёт первым, месяц вторым. Возвращает ok=false при
// несовпадении с форматом и никогда не паникует.
func ParseTimestamp(s string) (time.Time, bool) {
	m := timestampPattern.FindStringSubmatch(NormalizeTimestamp(s))
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])

	// Двузначный год: <70 относим к 2000-м, остальное к 1900-м.
	if year < 100 {
		if year < 70 {
			year += 2000
		} else {
			year += 1900
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour < 1 || hour > 12 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	// 12 AM — полночь, 12 PM — полдень, остальные PM сдвигаются на 12.
	if m[7] == "AM" {
		if hour == 12 {
			hour = 0
		}
	} else if hour != 12 {
		hour += 12
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

// MentionDate возвращает дату-часть таймстемпа (первые восемь символов
// "DD/MM/YY"). Пустая строка, если формат не совпал.
func MentionDate(timestamp string) string {
	ts := NormalizeTimestamp(timestamp)
	if len(ts) < 8 {
		return ""
	}
	date := ts[:8]
	for i, r := range date {
		if i == 2 || i == 5 {
			if r != '/' {
				return ""
			}
			continue
		}
		if r < '0' || r > '9' {
			return ""
		}
	}
	return date
}
