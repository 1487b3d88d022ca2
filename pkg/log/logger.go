// Package log はzerologベースの構造化ロガーを提供する。
//
// Gatewayの全コンポーネントはこのパッケージ経由でログを出力する。
// 本番環境ではJSON形式、開発環境では人間が読みやすいコンソール形式を使用する。
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const (
	// FormatJSON は1行1JSONの出力形式。
	FormatJSON = "json"
	// FormatConsole はカラー付きのコンソール出力形式。
	FormatConsole = "console"
)

// Logger はパッケージ全体で共有するロガー。
var Logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = New(os.Stderr, zerolog.InfoLevel, FormatJSON)
	zlog.Logger = Logger
}

// New は指定された出力先・レベル・形式のロガーを生成する。
// 未知の形式が指定された場合はJSON形式として扱う。
func New(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", "gateway").
		Logger()
}

// Setup はログレベルと出力形式を設定し、グローバルロガーを差し替える。
func Setup(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("ログレベルの解析に失敗: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case "", FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("未知のログ形式です: %q", format)
	}

	Logger = New(os.Stderr, lvl, format)
	zlog.Logger = Logger
	return nil
}

// Info はinfoレベルのイベントを返す。
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn はwarnレベルのイベントを返す。
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error はerrorレベルのイベントを返す。
func Error() *zerolog.Event {
	return Logger.Error()
}

// Debug はdebugレベルのイベントを返す。
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal はfatalレベルのイベントを返す。Msg呼び出し後にプロセスは終了する。
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}
