package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"chatrex/internal/chat"
	"chatrex/internal/domain"
)

var testAnchors = []domain.Anchor{
	{Timestamp: "02/12/23, 7:27:49 AM", Label: "A"},
	{Timestamp: "18/12/23, 2:24:03 PM", Label: "D"},
}

func anchorTranscript() string {
	return "[02/12/23, 7:27:49 AM] Анна: первое опорное\n" +
		"[05/12/23, 9:00:00 AM] Борис: обычное сообщение\n" +
		"[18/12/23, 2:24:03 PM] Дима: второе опорное\n"
}

func TestResolveAnchorsDigestDeterministic(t *testing.T) {
	msgs := chat.Parse(anchorTranscript())

	first, err := ResolveAnchors(msgs, testAnchors, 2*time.Second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := ResolveAnchors(msgs, testAnchors, 2*time.Second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.Digest != second.Digest {
		t.Fatalf("отпечаток недетерминирован: %s vs %s", first.Digest, second.Digest)
	}

	sum := sha256.Sum256([]byte("первое опорное\nвторое опорное"))
	if want := hex.EncodeToString(sum[:]); first.Digest != want {
		t.Fatalf("ожидали отпечаток %s, получили %s", want, first.Digest)
	}
}

func TestResolveAnchorsFuzzyMatch(t *testing.T) {
	// Второй анкер смещён на секунду — в пределах tolerance.
	raw := "[02/12/23, 7:27:49 AM] Анна: первое опорное\n" +
		"[18/12/23, 2:24:04 PM] Дима: второе опорное\n"
	res, err := ResolveAnchors(chat.Parse(raw), testAnchors, 2*time.Second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.SenderLabels["Дима"] != "D" {
		t.Fatalf("ожидали метку D для Димы, получили %q", res.SenderLabels["Дима"])
	}
}

func TestResolveAnchorsMissingAnchor(t *testing.T) {
	raw := "[02/12/23, 7:27:49 AM] Анна: первое опорное\n"
	_, err := ResolveAnchors(chat.Parse(raw), testAnchors, 2*time.Second)
	if !errors.Is(err, ErrWrongFile) {
		t.Fatalf("ожидали ErrWrongFile, получили %v", err)
	}
}

func TestResolveAnchorsSkipsEmptySender(t *testing.T) {
	raw := "[02/12/23, 7:27:49 AM] Анна: первое опорное\n" +
		"[18/12/23, 2:24:03 PM] Служебное без отправителя\n"
	res, err := ResolveAnchors(chat.Parse(raw), testAnchors, 2*time.Second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(res.SenderLabels) != 1 {
		t.Fatalf("пустой отправитель не должен попадать в карту: %v", res.SenderLabels)
	}
	if res.SenderLabels["Анна"] != "A" {
		t.Fatalf("ожидали метку A для Анны")
	}
}

func TestResolveAnchorsLabelsAssignedPositionally(t *testing.T) {
	res, err := ResolveAnchors(chat.Parse(anchorTranscript()), testAnchors, 2*time.Second)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.SenderLabels["Анна"] != "A" || res.SenderLabels["Дима"] != "D" {
		t.Fatalf("метки разошлись с порядком анкеров: %v", res.SenderLabels)
	}
}
