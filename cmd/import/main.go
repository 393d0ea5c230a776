package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatrex/internal/adapters/apiclient"
	"chatrex/internal/infra/config"
	loginfra "chatrex/internal/infra/log"
	"chatrex/internal/usecase/ingest"
)

func main() {
	filePath := flag.String("file", "", "путь к zip-экспорту WhatsApp")
	serverURL := flag.String("server", "http://localhost:8080", "адрес API")
	secret := flag.String("secret", os.Getenv("API_SHARED_SECRET"), "общий секрет API")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Использование: import -file export.zip [-server url] [-secret key]")
		os.Exit(2)
	}

	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("import: файл не читается")
	}
	raw, err := ingest.ReadChatArchive(data)
	if err != nil {
		logger.Fatal().Err(err).Msg("import: архив не подходит")
	}

	client, err := apiclient.New(*serverURL, apiclient.WithSecret(*secret))
	if err != nil {
		logger.Fatal().Err(err).Msg("import: неверный адрес сервера")
	}

	session := ingest.NewSession(ingest.Config{
		Anchors:              cfg.Anchors(),
		Tolerance:            cfg.Ingest.Tolerance,
		BatchSize:            cfg.Ingest.BatchSize,
		InputCostPerMillion:  cfg.Ingest.InputCostPerMillion,
		OutputCostPerMillion: cfg.Ingest.OutputCostPerMillion,
	}, client, client, logger.With().Str("component", "session").Logger())

	if err := session.Start(ctx, raw); err != nil {
		switch {
		case errors.Is(err, ingest.ErrUpToDate):
			logger.Info().Msg("import: новых сообщений нет, всё уже обработано")
			return
		case errors.Is(err, ingest.ErrWrongFile), errors.Is(err, ingest.ErrHashMismatch):
			logger.Fatal().Err(err).Msg("import: это не тот экспорт, загрузите правильный файл")
		case errors.Is(err, ingest.ErrIncompatibleExport):
			logger.Fatal().Err(err).Msg("import: чекпоинт не привязывается, нужно вмешательство оператора")
		default:
			logger.Fatal().Err(err).Msg("import: сессия не началась, попробуйте ещё раз")
		}
	}

	progress := session.Progress()
	logger.Info().
		Int("messages", progress.TotalMessages).
		Int("batches", progress.TotalBatches).
		Msg("import: проверка пройдена, начинаем отправку")

	if err := session.Run(ctx); err != nil {
		progress = session.Progress()
		// Чекпоинт двигался только на подтверждённых батчах: повторный
		// запуск продолжит ровно с несработавшего места.
		logger.Error().Err(err).
			Int("processed_batches", progress.ProcessedBatches).
			Int("total_batches", progress.TotalBatches).
			Msg("import: сбой, перезапустите команду для продолжения")
		os.Exit(1)
	}

	progress = session.Progress()
	logger.Info().
		Int("messages", progress.ProcessedMessages).
		Int("batches", progress.ProcessedBatches).
		Int("prompt_tokens", progress.Usage.PromptTokens).
		Int("completion_tokens", progress.Usage.CompletionTokens).
		Str("cost_usd", fmt.Sprintf("%.4f", session.Cost())).
		Msg("import: готово")
}
