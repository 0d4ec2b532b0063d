package config

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ANSI SGR codes for the console log.
const (
	ansiRed         = 31
	ansiGreen       = 32
	ansiYellow      = 33
	ansiBlue        = 36
	ansiGray        = 37
	ansiLightGreen  = 92
	ansiLightYellow = 93
	ansiCyan        = 96
)

// GbFormatter renders one record per line: timestamp and level first, data
// fields in alphabetical order so consecutive records line up, the message
// last. Control characters inside values are escaped to keep the line whole.
type GbFormatter struct{}

func (f *GbFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString(colorize(ansiGray, entry.Time.Format("2006-01-02 15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(colorize(levelColor(entry.Level), levelTag(entry.Level)))

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(colorize(ansiCyan, key))
		b.WriteByte('=')
		b.WriteString(formatValue(entry.Data[key]))
	}

	b.WriteByte(' ')
	b.WriteString(colorize(ansiLightGreen, strconv.Quote(entry.Message)))

	line := b.String()
	line = strings.ReplaceAll(line, "\r", `\r`)
	line = strings.ReplaceAll(line, "\n", `\n`)
	return []byte(line + "\n"), nil
}

func formatValue(v any) string {
	switch value := v.(type) {
	case error:
		return colorize(ansiLightYellow, strconv.Quote(value.Error()))
	case string:
		return colorize(ansiLightYellow, strconv.Quote(value))
	case fmt.Stringer:
		return colorize(ansiLightYellow, strconv.Quote(value.String()))
	default:
		rendered := fmt.Sprint(value)
		if _, err := strconv.ParseFloat(rendered, 64); err == nil {
			return colorize(ansiGreen, rendered)
		}
		return colorize(ansiCyan, rendered)
	}
}

// levelTag keeps every level marker the same width.
func levelTag(level log.Level) string {
	return strings.ToUpper(level.String())[:4]
}

func levelColor(level log.Level) int {
	switch level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return ansiRed
	case log.WarnLevel:
		return ansiYellow
	case log.InfoLevel:
		return ansiBlue
	default:
		return ansiGray
	}
}

func colorize(code int, s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}
