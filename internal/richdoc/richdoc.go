// Package richdoc 将富文本编辑器产出的 JSON 文档树渲染成 HTML。
// 同一棵树支持两种输出模式:页面模式(class 装饰)与订阅模式(内联样式装饰)。
package richdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document 是一篇内容的根节点,content 的顺序即渲染顺序。
type Document struct {
	Type    string `json:"type,omitempty"`
	Content []Node `json:"content"`
}

// Node 是文档树中的一个节点,按 Type 分派渲染规则。
// 叶子类型(text、hardBreak、horizontalRule、image)没有 Content。
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// Mark 描述作用于一段文本的内联装饰(加粗、链接等)。
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// DecodeError 说明文档 JSON 不满足结构契约的原因。
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode document: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode 在读取边界做一次结构校验解析,返回类型化文档或 *DecodeError。
// 渲染阶段不再做任何形状检查;词汇层面的宽容(未知节点类型等)由渲染器负责。
func Decode(raw []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Reason: "empty input"}
	}
	if trimmed[0] != '{' {
		return nil, &DecodeError{Reason: "document is not a JSON object"}
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &DecodeError{Reason: "malformed document", Err: err}
	}
	return &doc, nil
}
