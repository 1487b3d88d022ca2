package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// swapLogger はテスト中だけグローバルロガーをバッファ出力に差し替える。
func swapLogger(t *testing.T, level zerolog.Level, format string) *bytes.Buffer {
	t.Helper()

	original := Logger
	buf := &bytes.Buffer{}
	Logger = New(buf, level, format)
	t.Cleanup(func() { Logger = original })
	return buf
}

func TestNew(t *testing.T) {
	t.Run("JSON形式で出力されること", func(t *testing.T) {
		buf := swapLogger(t, zerolog.InfoLevel, FormatJSON)

		Info().Str("service", "course").Msg("転送しました")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "course", entry["service"])
		assert.Equal(t, "gateway", entry["component"])
		assert.Equal(t, "転送しました", entry["message"])
		assert.Contains(t, entry, "time")
	})

	t.Run("コンソール形式ではJSONにならないこと", func(t *testing.T) {
		buf := swapLogger(t, zerolog.InfoLevel, FormatConsole)

		Warn().Msg("コンソール出力")

		assert.Contains(t, buf.String(), "コンソール出力")
		assert.False(t, json.Valid(buf.Bytes()))
	})

	t.Run("レベル未満のイベントは出力されないこと", func(t *testing.T) {
		buf := swapLogger(t, zerolog.WarnLevel, FormatJSON)

		Debug().Msg("debug")
		Info().Msg("info")
		assert.Empty(t, buf.String())

		Error().Msg("error")
		assert.Contains(t, buf.String(), `"level":"error"`)
	})
}

func TestSetup(t *testing.T) {
	original := Logger
	t.Cleanup(func() { Logger = original })

	t.Run("有効なレベルと形式を受け付けること", func(t *testing.T) {
		require.NoError(t, Setup("debug", FormatJSON))
		assert.Equal(t, zerolog.DebugLevel, Logger.GetLevel())

		require.NoError(t, Setup(" WARN ", FormatConsole))
		assert.Equal(t, zerolog.WarnLevel, Logger.GetLevel())
	})

	t.Run("空のレベルはinfoとして扱うこと", func(t *testing.T) {
		require.NoError(t, Setup("", ""))
		assert.Equal(t, zerolog.InfoLevel, Logger.GetLevel())
	})

	t.Run("不正なレベルはエラーになること", func(t *testing.T) {
		assert.Error(t, Setup("verbose", FormatJSON))
	})

	t.Run("不正な形式はエラーになること", func(t *testing.T) {
		assert.Error(t, Setup("info", "xml"))
	})
}
