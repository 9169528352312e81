package decode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 宽松解码（默认 true）：例如 123 -> "123"、"1" -> int。
	WeaklyTypedInput bool
	// 未知字段报错（默认 false）。
	ErrorUnused bool
	// 保留字符串首尾空白（默认 false，即去掉）。消息正文需要原样保存。
	KeepSpace bool
}

// DefaultOptions 返回默认选项。
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// DecodePayload 把事件的 JSON data 解码到业务结构体 T。
// 字段读取使用 `json` tag。data 既可以是对象，也可以是对象序列化后的字符串
// （部分客户端会把 payload 先 JSON.stringify 一次）。
func DecodePayload[T any](raw json.RawMessage, opts ...Options) (*T, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("payload json: %w", err)
	}
	if s, ok := generic.(string); ok {
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("payload is a string, want object")
		}
		generic = inner
	}
	m, ok := generic.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload type %T, want object", generic)
	}

	hooks := []mapstructure.DecodeHookFunc{floatToIntHook()}
	if !cfg.KeepSpace {
		hooks = append(hooks, trimStringHook())
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ErrorUnused:      cfg.ErrorUnused,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(hooks...),
	}
	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}

// DecodeString 读取标量 payload（如 register 的用户名）。
// 兼容 "Bob"、123 以及 {"<key>": "Bob"} 三种写法。
func DecodeString(raw json.RawMessage, key string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("payload is empty")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("payload json: %w", err)
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64, bool:
		var s string
		if err := mapstructure.WeakDecode(t, &s); err != nil {
			return "", fmt.Errorf("payload scalar: %w", err)
		}
		return s, nil
	case map[string]any:
		field, ok := t[key]
		if !ok || field == nil {
			return "", fmt.Errorf("missing field %q", key)
		}
		var s string
		if err := mapstructure.WeakDecode(field, &s); err != nil {
			return "", fmt.Errorf("field %q: %w", key, err)
		}
		return strings.TrimSpace(s), nil
	default:
		return "", fmt.Errorf("payload type %T not string", v)
	}
}

// -----------------------------
// Decode Hooks
// -----------------------------

// floatToIntHook：把 float64 自动转为 int / int32 / int64。
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// trimStringHook：字符串字段去掉首尾空白。
func trimStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(data.(string)), nil
	}
}
