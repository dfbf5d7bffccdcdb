package traffic

import (
	"sort"
	"strings"
)

// Header 大小写不敏感的头部映射，键统一以小写存储
type Header map[string]string

// Get 获取指定头部的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Lookup 获取指定头部的值并报告其是否存在
func (h Header) Lookup(key string) (string, bool) {
	if h == nil {
		return "", false
	}
	v, ok := h[strings.ToLower(key)]
	return v, ok
}

// Set 设置指定头部的值（键自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定头部
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 复制头部映射，nil 安全
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Join 按 "name: value" 逐行拼接全部头部，行以 sep 分隔。
// 键按字典序输出以保证结果稳定。
func (h Header) Join(sep string) string {
	if len(h) == 0 {
		return ""
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(h[k])
		b.WriteString(sep)
	}
	return b.String()
}

// Request 中立的请求模型，由状态机交给传输适配器执行
type Request struct {
	ID              string // 交换唯一ID
	Method          string // HTTP方法
	URL             string // 完整URL
	Headers         Header // 请求头
	Body            []byte // 请求体原始数据
	WithCredentials bool   // 是否携带凭据（Cookie）
}

// NewRequest 创建初始化请求对象
func NewRequest() *Request {
	return &Request{Headers: make(Header)}
}
