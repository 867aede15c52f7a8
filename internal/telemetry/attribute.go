package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slog"
)

// Attr is a telemetry attribute.
type Attr struct {
	typ attrType
	key string
	str string
	num int64
	flg bool
}

// String returns a string attribute.
func String[T ~string](k string, v T) Attr {
	return Attr{
		typ: attrTypeString,
		key: k,
		str: string(v),
	}
}

// Int returns an int64 attribute.
func Int[T constraints.Integer](k string, v T) Attr {
	return Attr{
		typ: attrTypeInt64,
		key: k,
		num: int64(v),
	}
}

// Bool returns a boolean attribute.
func Bool[T ~bool](k string, v T) Attr {
	return Attr{
		typ: attrTypeBool,
		key: k,
		flg: bool(v),
	}
}

// Time returns a string attribute containing v in [time.RFC3339] format.
func Time(k string, v time.Time) Attr {
	return String(k, v.Format(time.RFC3339))
}

// Duration returns a string attribute containing v in human readable format.
func Duration(k string, v time.Duration) Attr {
	return String(k, v.String())
}

// If returns attr if cond is true, otherwise it returns an empty attribute that
// is not recorded.
func If(cond bool, attr Attr) Attr {
	if cond {
		return attr
	}
	return Attr{}
}

func (a Attr) otel() (attribute.KeyValue, bool) {
	switch a.typ {
	case attrTypeNone:
		return attribute.KeyValue{}, false
	case attrTypeString:
		return attribute.String(a.key, a.str), true
	case attrTypeInt64:
		return attribute.Int64(a.key, a.num), true
	case attrTypeBool:
		return attribute.Bool(a.key, a.flg), true
	default:
		panic("unknown attribute type")
	}
}

func (a Attr) slog() (slog.Attr, bool) {
	switch a.typ {
	case attrTypeNone:
		return slog.Attr{}, false
	case attrTypeString:
		return slog.String(a.key, a.str), true
	case attrTypeInt64:
		return slog.Int64(a.key, a.num), true
	case attrTypeBool:
		return slog.Bool(a.key, a.flg), true
	default:
		panic("unknown attribute type")
	}
}

type attrType uint8

const (
	attrTypeNone attrType = iota
	attrTypeString
	attrTypeInt64
	attrTypeBool
)

func asAttrKeyValues(attrs []Attr) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))

	for _, attr := range attrs {
		if kv, ok := attr.otel(); ok {
			kvs = append(kvs, kv)
		}
	}

	return kvs
}

func asSlogAttrs(attrs []Attr, extra ...slog.Attr) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs)+len(extra))

	for _, attr := range attrs {
		if a, ok := attr.slog(); ok {
			result = append(result, a)
		}
	}

	return append(result, extra...)
}
