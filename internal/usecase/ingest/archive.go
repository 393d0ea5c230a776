package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// MaxArchiveSize — предел размера архива до распаковки.
const MaxArchiveSize = 1 << 20

// ErrArchiveTooLarge возвращается для архива больше MaxArchiveSize.
var ErrArchiveTooLarge = errors.New("архив больше 1 МБ")

// ErrNoChatEntry возвращается, когда в архиве нет файла *_chat.txt.
var ErrNoChatEntry = errors.New("в архиве нет экспорта чата")

var chatEntryPattern = regexp.MustCompile(`(?i)_chat\.txt$`)

// ReadChatArchive достаёт текст экспорта из zip-архива WhatsApp.
// Ожидается ровно одна запись *_chat.txt (без учёта регистра); берётся
// первая подходящая. Ошибки здесь — ошибки входных данных, повтор не нужен.
func ReadChatArchive(data []byte) (string, error) {
	if len(data) > MaxArchiveSize {
		return "", ErrArchiveTooLarge
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("чтение архива: %w", err)
	}
	for _, file := range reader.File {
		if !chatEntryPattern.MatchString(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("открытие %s: %w", file.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, 8*MaxArchiveSize))
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("распаковка %s: %w", file.Name, err)
		}
		return string(content), nil
	}
	return "", ErrNoChatEntry
}
