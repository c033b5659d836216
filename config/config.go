// Package config はアプリケーション設定を管理します。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stsysd/koyomi/calendar"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持します。
type Config struct {
	// データディレクトリのパス
	DataDir string

	// HTTPサーバーのポート
	Port string

	// API認証キー
	APIKey string

	// ログレベル
	LogLevel slog.Level
}

// NewConfig は環境変数から設定を読み込み、Configインスタンスを生成します。
// APIキーが未設定でもエラーにはしません。必要かどうかは呼び出し側が判断します。
func NewConfig() (*Config, error) {
	// データディレクトリの設定
	dataDir := os.Getenv("KOYOMI_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(".", "data")
	}

	// ポートの設定
	port := os.Getenv("KOYOMI_SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	level, err := ParseLogLevel(os.Getenv("KOYOMI_LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DataDir:  dataDir,
		Port:     port,
		APIKey:   os.Getenv("KOYOMI_API_KEY"),
		LogLevel: level,
	}, nil
}

// ParseLogLevel はログレベル名を slog.Level に変換します。空文字列は info です。
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger は設定されたレベルのテキストロガーを作成します。
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

// LoadSettings はYAMLファイルからカレンダー設定を読み込みます。
// ファイルにない項目は既定値のままです。ファイルが存在しない場合は既定値を返します。
func LoadSettings(path string, today time.Time) (calendar.Settings, error) {
	settings := calendar.DefaultSettings(today)
	if path == "" {
		return settings, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return calendar.Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(b, &settings); err != nil {
		return calendar.Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return calendar.Settings{}, err
	}
	return settings, nil
}
