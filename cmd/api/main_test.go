package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chatrex/internal/domain"
)

type fakeMeta struct {
	values map[string]string
}

func (f *fakeMeta) GetValue(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeMeta) SetValue(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func verifyHandlers(t *testing.T, hash string) *apiHandlers {
	t.Helper()
	return &apiHandlers{
		chatHash: hash,
		meta:     &fakeMeta{values: map[string]string{"progress_timestamp": "02/12/23, 7:27:49 AM"}},
		log:      zerolog.Nop(),
	}
}

func digestOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func postVerify(t *testing.T, h *apiHandlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify-chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.verifyChat(rec, req)
	return rec
}

func TestVerifyChatMatch(t *testing.T) {
	hash := digestOf("якорные сообщения")
	rec := postVerify(t, verifyHandlers(t, hash), `{"hash":"`+hash+`"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var result domain.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if !result.OK || result.ProgressTimestamp != "02/12/23, 7:27:49 AM" {
		t.Fatalf("совпадение должно вернуть ok и чекпоинт: %+v", result)
	}
}

func TestVerifyChatMismatchIsOK200(t *testing.T) {
	rec := postVerify(t, verifyHandlers(t, digestOf("эталон")), `{"hash":"`+digestOf("другой экспорт")+`"}`)

	// Несовпадение — обычный ответ, не ошибка протокола.
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var result domain.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if result.OK {
		t.Fatal("чужой отпечаток не должен проходить проверку")
	}
	if result.ProgressTimestamp != "" {
		t.Fatalf("ответ на mismatch не должен содержать чекпоинт: %q", result.ProgressTimestamp)
	}
}

func TestVerifyChatMissingHash(t *testing.T) {
	rec := postVerify(t, verifyHandlers(t, digestOf("эталон")), `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидали 400, получили %d", rec.Code)
	}
}

func TestVerifyChatUnconfigured(t *testing.T) {
	rec := postVerify(t, verifyHandlers(t, ""), `{"hash":"`+digestOf("любой")+`"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("ожидали 500, получили %d", rec.Code)
	}
}

func TestVerifyChatHashLengthMismatch(t *testing.T) {
	// Отпечаток другой длины не должен проходить и не должен паниковать.
	rec := postVerify(t, verifyHandlers(t, digestOf("эталон")), `{"hash":"deadbeef"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	var result domain.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if result.OK {
		t.Fatal("короткий отпечаток не должен проходить проверку")
	}
}
