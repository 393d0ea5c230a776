package enrich

import (
	"regexp"
	"strings"
)

var (
	urlPattern          = regexp.MustCompile(`(?i)https?://\S+`)
	trailingPunctuation = regexp.MustCompile(`[)\],.]+$`)
	appleMusicSuffix    = regexp.MustCompile(`(?i)\s+on\s+Apple\s+Music\s*$`)
)

// ExtractURL возвращает первый URL в строке без хвостовой пунктуации,
// либо пустую строку.
func ExtractURL(s string) string {
	m := urlPattern.FindString(s)
	if m == "" {
		return ""
	}
	return trailingPunctuation.ReplaceAllString(m, "")
}

// CleanTitle убирает маркетинговый хвост "on Apple Music" из og:title.
func CleanTitle(title string) string {
	return strings.TrimSpace(appleMusicSuffix.ReplaceAllString(title, ""))
}
