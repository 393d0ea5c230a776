package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatrex/internal/chat"
	"chatrex/internal/domain"
)

// ErrWrongFile возвращается, когда экспорт не содержит опорных сообщений.
var ErrWrongFile = errors.New("это не тот экспорт чата")

// AnchorResolution — результат привязки опорных таймстемпов.
type AnchorResolution struct {
	// Digest — sha256 в нижнем hex над телами опорных сообщений,
	// склеенными через "\n" в порядке анкеров.
	Digest string
	// SenderLabels сопоставляет реальных отправителей анонимным меткам.
	SenderLabels map[string]string
}

// ResolveAnchors находит сообщение для каждого опорного таймстемпа (точно
// или в пределах tolerance) и строит отпечаток экспорта. Ненайденный анкер
// означает чужой файл: возвращается ErrWrongFile, обработка прекращается.
func ResolveAnchors(msgs []domain.Message, anchors []domain.Anchor, tolerance time.Duration) (AnchorResolution, error) {
	texts := make([]string, 0, len(anchors))
	labels := make(map[string]string, len(anchors))
	for _, anchor := range anchors {
		idx := chat.LocateIndex(msgs, anchor.Timestamp, tolerance)
		if idx < 0 {
			return AnchorResolution{}, fmt.Errorf("%w: нет сообщения в точке %s", ErrWrongFile, anchor.Timestamp)
		}
		texts = append(texts, msgs[idx].Text)
		if sender := msgs[idx].Sender; sender != "" {
			labels[sender] = anchor.Label
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(texts, "\n")))
	return AnchorResolution{Digest: hex.EncodeToString(sum[:]), SenderLabels: labels}, nil
}
