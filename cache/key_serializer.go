package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// KeySeparator sits between key segments.
	KeySeparator = "::"

	// MaxKeyLength is the longest key returned verbatim. Longer keys keep
	// their namespace and method segments and replace the arguments with
	// an xxhash digest.
	MaxKeyLength = 200
)

// defaultKeySerializer renders keys as namespace::method::arg::arg.
// Arguments are rendered from their values, never from memory addresses, so
// the same call produces the same key in every process sharing a cache.
type defaultKeySerializer struct {
	namespace string
}

// NewDefaultKeySerializer returns a serializer prefixing every key with
// namespace. An empty namespace is omitted.
func NewDefaultKeySerializer(namespace string) KeySerializer {
	return &defaultKeySerializer{namespace: namespace}
}

func (s *defaultKeySerializer) Prefix(method string) string {
	if s.namespace == "" {
		return method + KeySeparator
	}
	return s.namespace + KeySeparator + method + KeySeparator
}

func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	head := strings.TrimSuffix(s.Prefix(method), KeySeparator)
	if len(args) == 0 {
		return head
	}

	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = renderValue(reflect.ValueOf(arg))
	}
	tail := strings.Join(parts, KeySeparator)

	key := head + KeySeparator + tail
	if len(key) <= MaxKeyLength {
		return key
	}
	return head + KeySeparator + "#" + strconv.FormatUint(xxhash.Sum64String(tail), 16)
}

var timeType = reflect.TypeOf(time.Time{})

func renderValue(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return renderValue(v.Elem())

	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.String:
		return v.String()

	case reflect.Slice:
		if v.IsNil() {
			return "[]"
		}
		return renderList(v)
	case reflect.Array:
		return renderList(v)

	case reflect.Map:
		return renderMap(v)

	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
		}
		return renderStruct(v)

	case reflect.Func:
		if v.IsNil() {
			return "nil"
		}
		// named functions resolve to the same symbol in every process
		if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
			return "func:" + fn.Name()
		}
		return "func"
	}

	return jsonFallback(v)
}

func renderList(v reflect.Value) string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = renderValue(v.Index(i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func renderMap(v reflect.Value) string {
	if v.IsNil() {
		return "{}"
	}

	pairs := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, renderValue(iter.Key())+"="+renderValue(iter.Value()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func renderStruct(v reflect.Value) string {
	t := v.Type()
	parts := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+renderValue(v.Field(i)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func jsonFallback(v reflect.Value) string {
	if !v.CanInterface() {
		return v.Type().String()
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("%s:%v", v.Type(), v.Interface())
	}
	return string(data)
}
