// Package logger は zerolog によるロガーの生成と、各ライブラリ向けのアダプターを提供します。
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New は level と pretty に従ってロガーを作成します。
// level が解釈できない場合は info になります。
func New(level string, pretty bool) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, pretty)
}

// NewWithWriter は出力先を指定してロガーを作成します。
func NewWithWriter(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// AsynqLogger は zerolog.Logger を asynq.Logger として使うためのアダプターです。
type AsynqLogger struct {
	log zerolog.Logger
}

// Asynq は asynq.Logger を満たすアダプターを返します。
func Asynq(log zerolog.Logger) *AsynqLogger {
	return &AsynqLogger{log: log.With().Str("component", "asynq").Logger()}
}

func (a *AsynqLogger) Debug(args ...interface{}) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Info(args ...interface{})  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Warn(args ...interface{})  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a *AsynqLogger) Error(args ...interface{}) { a.log.Error().Msg(fmt.Sprint(args...)) }

// Fatal はプロセスを終了させず error として記録します。終了判断は呼び出し側に任せます。
func (a *AsynqLogger) Fatal(args ...interface{}) { a.log.Error().Bool("fatal", true).Msg(fmt.Sprint(args...)) }
