package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorWhite   = "\033[97m"
	colorBoldRed = "\033[1;31m"
)

// colorHandler is a slog.Handler that formats log records with ANSI colors
type colorHandler struct {
	opts              *slog.HandlerOptions
	mu                *sync.Mutex
	writer            io.Writer
	preformattedAttrs string
	groups            []string
}

// NewColorHandler creates a new color handler that formats logs with colors
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &colorHandler{
		opts:   opts,
		mu:     &sync.Mutex{},
		writer: w,
	}
}

// Enabled reports whether the handler handles records at the given level
func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats the record as "time LEVEL message key=value ..."
func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	if !r.Time.IsZero() {
		buf.WriteString(colorGray)
		buf.WriteString(r.Time.Format(time.TimeOnly))
		buf.WriteString(colorReset)
		buf.WriteByte(' ')
	}

	buf.WriteString(levelColor(r.Level))
	buf.WriteString(strings.ToUpper(r.Level.String()))
	buf.WriteString(colorReset)
	buf.WriteByte(' ')

	buf.WriteString(messageColor(r.Level))
	buf.WriteString(r.Message)
	buf.WriteString(colorReset)

	if h.preformattedAttrs != "" {
		buf.WriteByte(' ')
		buf.WriteString(h.preformattedAttrs)
	}

	needSpace := h.preformattedAttrs != ""
	r.Attrs(func(a slog.Attr) bool {
		if needSpace {
			buf.WriteByte(' ')
		}
		needSpace = h.appendAttr(&buf, a) || needSpace
		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, buf.String())
	return err
}

func levelColor(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return colorGray
	case slog.LevelInfo:
		return colorCyan
	case slog.LevelWarn:
		return colorYellow
	case slog.LevelError:
		return colorRed
	default:
		return colorWhite
	}
}

func messageColor(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return colorGray
	case slog.LevelWarn:
		return colorYellow
	case slog.LevelError:
		return colorBoldRed
	default:
		return colorWhite
	}
}

// appendAttr writes key=value and reports whether anything was written
func (h *colorHandler) appendAttr(buf *strings.Builder, a slog.Attr) bool {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return false
	}

	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}

	buf.WriteString(colorCyan)
	buf.WriteString(key)
	buf.WriteString(colorReset)
	buf.WriteByte('=')
	h.appendValue(buf, a.Value, a.Key)
	return true
}

func (h *colorHandler) appendValue(buf *strings.Builder, v slog.Value, key string) {
	switch v.Kind() {
	case slog.KindString:
		buf.WriteString(stringColor(key, v.String()))
		buf.WriteString(v.String())
		buf.WriteString(colorReset)
	case slog.KindInt64:
		buf.WriteString(intColor(key, v.Int64()))
		fmt.Fprintf(buf, "%d", v.Int64())
		buf.WriteString(colorReset)
	case slog.KindUint64:
		buf.WriteString(colorYellow)
		fmt.Fprintf(buf, "%d", v.Uint64())
		buf.WriteString(colorReset)
	case slog.KindFloat64:
		buf.WriteString(colorYellow)
		fmt.Fprintf(buf, "%g", v.Float64())
		buf.WriteString(colorReset)
	case slog.KindBool:
		buf.WriteString(colorMagenta)
		fmt.Fprintf(buf, "%t", v.Bool())
		buf.WriteString(colorReset)
	case slog.KindDuration:
		buf.WriteString(colorBlue)
		buf.WriteString(v.Duration().String())
		buf.WriteString(colorReset)
	case slog.KindTime:
		buf.WriteString(colorGray)
		buf.WriteString(v.Time().Format(time.RFC3339))
		buf.WriteString(colorReset)
	case slog.KindGroup:
		attrs := v.Group()
		buf.WriteByte('{')
		for i, a := range attrs {
			if i > 0 {
				buf.WriteByte(' ')
			}
			h.appendAttr(buf, a)
		}
		buf.WriteByte('}')
	default:
		fmt.Fprintf(buf, "%v", v.Any())
	}
}

// stringColor highlights errors and channel states.
func stringColor(key, val string) string {
	switch key {
	case "error":
		return colorRed
	case "state":
		switch val {
		case "connected":
			return colorGreen
		case "disabled":
			return colorRed
		default:
			return colorYellow
		}
	default:
		return ""
	}
}

// intColor highlights HTTP status codes by class.
func intColor(key string, val int64) string {
	if key != "status" {
		return colorYellow
	}
	switch {
	case val >= 500:
		return colorRed
	case val >= 400:
		return colorYellow
	default:
		return colorGreen
	}
}

// WithAttrs returns a new handler with the given attributes
func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	var preformatted strings.Builder
	preformatted.WriteString(h.preformattedAttrs)
	for _, a := range attrs {
		if preformatted.Len() > 0 {
			preformatted.WriteByte(' ')
		}
		h2.appendAttr(&preformatted, a)
	}
	h2.preformattedAttrs = preformatted.String()
	return &h2
}

// WithGroup returns a new handler with the given group
func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = make([]string, len(h.groups), len(h.groups)+1)
	copy(h2.groups, h.groups)
	h2.groups = append(h2.groups, name)
	return &h2
}
