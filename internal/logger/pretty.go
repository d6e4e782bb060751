// internal/logger/pretty.go
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// PrettyEncoder creates a user-friendly console encoder
func PrettyEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(prettyEncoderConfig())
}

func prettyEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// customLevelEncoder formats log levels with colors
func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(fmt.Sprintf("%s[DEBUG]%s", ColorCyan, ColorReset))
	case zapcore.InfoLevel:
		enc.AppendString(fmt.Sprintf("%s[INFO]%s", ColorGreen, ColorReset))
	case zapcore.WarnLevel:
		enc.AppendString(fmt.Sprintf("%s[WARN]%s", ColorYellow, ColorReset))
	case zapcore.ErrorLevel:
		enc.AppendString(fmt.Sprintf("%s[ERROR]%s", ColorRed, ColorReset))
	case zapcore.FatalLevel:
		enc.AppendString(fmt.Sprintf("%s[FATAL]%s", ColorRed+ColorBold, ColorReset))
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

// FormatMessage turns the executor's structured log lines into short human
// sentences. Unknown messages pass through.
func FormatMessage(msg string, fields ...zapcore.Field) string {
	switch {
	case strings.Contains(msg, "Starting atomic route execution"):
		steps := extractField(fields, "steps")
		route := extractField(fields, "route")
		return fmt.Sprintf("%s⚡ Executing %s-hop route %s%s", ColorCyan, steps, route, ColorReset)

	case strings.Contains(msg, "Executing step"):
		return fmt.Sprintf("   Step %s via %s: %s in (min out %s)",
			extractField(fields, "step"), extractField(fields, "venue"),
			extractField(fields, "input_amount"), extractField(fields, "min_output"))

	case strings.Contains(msg, "Step output"):
		return fmt.Sprintf("   Step %s output: %s", extractField(fields, "step"), extractField(fields, "output_amount"))

	case strings.Contains(msg, "Route settled"):
		return fmt.Sprintf("%s📊 Final balance %s, profit %s bps%s", ColorBlue,
			extractField(fields, "final_balance"), extractField(fields, "profit_bps"), ColorReset)

	case strings.Contains(msg, "Arbitrage completed"):
		return fmt.Sprintf("%s🎉 Arbitrage completed: %s bps%s", ColorGreen+ColorBold, extractField(fields, "profit_bps"), ColorReset)

	case strings.Contains(msg, "Route aborted"), strings.Contains(msg, "Route rejected"):
		return fmt.Sprintf("%s✗ %s: %s%s", ColorRed, msg, extractField(fields, "error"), ColorReset)

	case strings.Contains(msg, "Emergency cancel triggered"):
		return fmt.Sprintf("%s⛔ Cancel: %s%s", ColorYellow, extractField(fields, "reason"), ColorReset)

	default:
		return msg
	}
}

func extractField(fields []zapcore.Field, key string) string {
	for _, field := range fields {
		if field.Key != key {
			continue
		}
		switch {
		case field.String != "":
			return field.String
		case field.Interface != nil:
			if err, ok := field.Interface.(error); ok {
				return err.Error()
			}
			return fmt.Sprintf("%v", field.Interface)
		default:
			return fmt.Sprintf("%d", field.Integer)
		}
	}
	return ""
}

// FieldFilterCore rewrites entries through FormatMessage and drops the
// structured fields, leaving one readable line per entry.
type FieldFilterCore struct {
	core   zapcore.Core
	fields []zapcore.Field
}

func (c *FieldFilterCore) Enabled(level zapcore.Level) bool {
	return c.core.Enabled(level)
}

func (c *FieldFilterCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &FieldFilterCore{core: c.core, fields: merged}
}

func (c *FieldFilterCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *FieldFilterCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field{}, c.fields...), fields...)
	entry.Message = FormatMessage(entry.Message, all...)
	return c.core.Write(entry, nil)
}

func (c *FieldFilterCore) Sync() error {
	return c.core.Sync()
}
