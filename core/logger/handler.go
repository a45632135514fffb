package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// lineHandler renders every record as one flat line. Groups become dotted
// key prefixes.
type lineHandler struct {
	level  slog.Leveler
	out    *sink
	format logFormat
	order  []string

	fields []field // from WithAttrs, already prefixed
	prefix string
}

func newLineHandler(out *sink, format logFormat, level slog.Leveler, order []string) *lineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	if len(order) == 0 {
		order = defaultKeyOrder
	}
	return &lineHandler{level: level, out: out, format: format, order: order}
}

func (h *lineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.fields = slices.Clip(h.fields)
	for _, a := range attrs {
		c.fields = appendAttr(c.fields, h.prefix, a)
	}
	return &c
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = joinKey(h.prefix, name)
	return &c
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return errors.New("logger: output not initialized")
	}
	line := make(map[string]any, 16)
	for _, f := range h.fields {
		line[f.key] = f.val
	}
	var recs []field
	r.Attrs(func(a slog.Attr) bool {
		recs = appendAttr(recs, h.prefix, a)
		return true
	})
	for _, f := range recs {
		line[f.key] = f.val
	}
	for _, f := range contextFields(ctx) {
		if _, ok := line[f.key]; !ok {
			line[f.key] = f.val
		}
	}

	ts := r.Time.UTC()
	line["ts"] = ts.Format(timeLayout)
	line["level"] = levelName(r.Level)
	if h.format == formatJSON {
		line["ts_unix_nano"] = ts.UnixNano()
	}
	setDefault(line, "event", r.Message, "unknown")
	setDefault(line, "component", "app")
	if rid, ok := line["rid"].(string); ok {
		if short := CompactRID(rid); short != rid {
			if h.format == formatJSON {
				line["rid_full"] = rid
			}
			line["rid"] = short
		}
	}
	for _, k := range enumKeys {
		if s, ok := line[k].(string); ok {
			line[k] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	for k, v := range line {
		if v == nil || v == "" {
			delete(line, k)
		}
	}

	var out []byte
	if h.format == formatJSON {
		var err error
		if out, err = encodeJSON(line, h.order); err != nil {
			return err
		}
	} else {
		out = encodeKV(line, h.order)
	}
	return h.out.write(r.Level, append(out, '\n'))
}

// setDefault fills key with the first non-empty candidate when it is unset.
func setDefault(line map[string]any, key string, candidates ...string) {
	if s, ok := line[key].(string); ok && s != "" {
		return
	}
	for _, c := range candidates {
		if c != "" {
			line[key] = c
			return
		}
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// appendAttr flattens a into dst, resolving LogValuers and expanding groups.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			dst = appendAttr(dst, key, child)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	if k, val, ok := fieldValue(key, v); ok {
		dst = append(dst, field{k, val})
	}
	return dst
}

// fieldValue converts v into a JSON-friendly value. Durations are logged as
// whole milliseconds under a *_ms key.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	case string:
		return key, strings.TrimSpace(x), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// orderKeys returns the keys of line, listed ones first, the rest sorted.
func orderKeys(line map[string]any, order []string) []string {
	keys := make([]string, 0, len(line))
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := line[k]; ok && !listed[k] {
			keys = append(keys, k)
		}
		listed[k] = true
	}
	rest := len(keys)
	for k := range line {
		if !listed[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[rest:])
	return keys
}

func encodeJSON(line map[string]any, order []string) ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range orderKeys(line, order) {
		val, err := json.Marshal(line[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func encodeKV(line map[string]any, order []string) []byte {
	var b strings.Builder
	for i, k := range orderKeys(line, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		s := fmt.Sprint(line[k])
		if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
			s = strconv.Quote(s)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s)
	}
	return []byte(b.String())
}
