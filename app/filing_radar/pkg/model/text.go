package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Text 宽松解析的文本字段：字符串原样保留，数字与布尔转成字面量，其余视为空
type Text string

// UnmarshalJSON 实现 json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case 'n', '{', '[':
		*t = ""
	default:
		*t = Text(string(data))
	}
	return nil
}

// String 返回字符串值
func (t Text) String() string { return string(t) }

// Insights 洞察文本列表，非字符串元素视为空串
type Insights []string

// UnmarshalJSON 实现 json.Unmarshaler
func (in *Insights) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		// 单个字符串也接受
		var t Text
		if err := t.UnmarshalJSON(data); err != nil {
			return err
		}
		if t == "" {
			*in = nil
		} else {
			*in = Insights{string(t)}
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Insights, 0, len(raw))
	for _, r := range raw {
		var s string
		if len(r) > 0 && r[0] == '"' {
			if err := json.Unmarshal(r, &s); err != nil {
				return err
			}
		}
		out = append(out, s)
	}
	*in = out
	return nil
}

// Join 拼接非空洞察
func (in Insights) Join(sep string) string {
	parts := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
