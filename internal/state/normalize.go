package state

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel 接口中表示“数据不可用”的占位值
const Sentinel = -2147483648

// ToNumber 将接口字段归一化为数值
// nil、占位值（数值或字符串形式）、非数值字符串均视为未知并返回 nil；0 是有效读数
func ToNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		p, err := n.Float64()
		if err != nil {
			return nil
		}
		f = p
	case string:
		s := strings.TrimSpace(n)
		if s == strconv.Itoa(Sentinel) {
			return nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	if f == Sentinel {
		return nil
	}
	return &f
}

// NumberOr 归一化后取值，未知时返回默认值
func NumberOr(v any, def float64) float64 {
	if f := ToNumber(v); f != nil {
		return *f
	}
	return def
}

// Value 将可空数值转为 JSON 友好的值（nil 或 float64）
func Value(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// Truthy 判断开关类字段是否为“开”（"1"、1、true）
func Truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	f := ToNumber(v)
	return f != nil && *f != 0
}

// asString 字段转为字符串，nil 返回空串
func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// obj 按路径读取嵌套对象，缺失时返回空对象
func obj(p map[string]any, path ...string) map[string]any {
	cur := p
	for _, k := range path {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return map[string]any{}
		}
		cur = next
	}
	if cur == nil {
		return map[string]any{}
	}
	return cur
}

// copyMap 浅拷贝，避免修改存储中的原始数据
func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// orEmpty 缺失或为空时返回默认值
func orEmpty(v any, def any) any {
	switch t := v.(type) {
	case nil:
		return def
	case map[string]any:
		if len(t) == 0 {
			return def
		}
	case []any:
		if len(t) == 0 {
			return def
		}
	case string:
		if t == "" {
			return def
		}
	}
	return v
}
