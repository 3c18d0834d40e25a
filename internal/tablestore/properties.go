package tablestore

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Properties содержит атрибуты строки. Разные бэкенды возвращают значения разных типов
// (например, время строкой из JSONB или числа как int32 из Azure), поэтому чтение идёт
// через приводящие методы.
type Properties map[string]any

// String возвращает строковое значение или пустую строку.
func (p Properties) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Bool возвращает логическое значение; строки "true"/"True" также распознаются.
func (p Properties) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Int возвращает целое значение.
func (p Properties) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, _ := v.Float64()
			return int(f)
		}
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Time возвращает момент времени или нулевое значение.
func (p Properties) Time(key string) time.Time {
	t := p.TimePtr(key)
	if t == nil {
		return time.Time{}
	}
	return *t
}

// TimePtr возвращает момент времени или nil, если атрибут не задан.
func (p Properties) TimePtr(key string) *time.Time {
	switch v := p[key].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := v.UTC()
		return &t
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	default:
		return nil
	}
}

// Decimal возвращает денежную сумму.
func (p Properties) Decimal(key string) decimal.Decimal {
	switch v := p[key].(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func (p Properties) clone() Properties {
	if p == nil {
		return Properties{}
	}
	c := make(Properties, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
