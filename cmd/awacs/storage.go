package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OCAP2/awacs/internal/config"
	"github.com/OCAP2/awacs/internal/database"
	"github.com/OCAP2/awacs/internal/storage"
	"github.com/OCAP2/awacs/internal/storage/memory"
	pgstorage "github.com/OCAP2/awacs/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/awacs/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/awacs/internal/storage/websocket"
)

func createStorageBackend(
	storageCfg config.StorageConfig,
	zl zerolog.Logger,
	logger *slog.Logger,
	sessionStart time.Time,
) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend selected")
		return pgstorage.New(pgstorage.Config{
			DSN:           database.PostgresDSN(),
			FlushInterval: config.GetDuration("db.flushInterval"),
		}, zl), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.DumpPath
		if dumpPath == "" {
			dumpPath = fmt.Sprintf("awacs_%s.db", sessionStart.Format("20060102_150405"))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, zl)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend selected", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		wsURL := httpToWS(storageCfg.WebSocket.URL)
		logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:        wsURL,
			Secret:     storageCfg.WebSocket.Secret,
			AckTimeout: storageCfg.WebSocket.AckTimeout,
		}, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		logger.Warn("Unknown storage type, using memory", "type", storageCfg.Type)
		return memory.New(storageCfg.Memory), nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
