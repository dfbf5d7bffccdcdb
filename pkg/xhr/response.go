package xhr

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"xhrbridge/pkg/traffic"
)

// ReadyState 返回当前就绪状态
func (r *Request) ReadyState() ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Method 返回 open 设定的 HTTP 方法
func (r *Request) Method() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method
}

// URL 返回 open 设定的请求地址
func (r *Request) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// Async 返回 open 设定的异步标记（本实现恒按异步执行）
func (r *Request) Async() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.async
}

// Status 返回响应状态码，HEADERS_RECEIVED 之前为 0
func (r *Request) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// StatusText 返回状态行原因短语
func (r *Request) StatusText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusText
}

// ResponseText 返回已累积的响应体文本
func (r *Request) ResponseText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}

// Response 按 responseType 解释响应体：
// ""/"text" 返回 string；"json" 返回解析后的值，无效 JSON 返回 nil；
// "arraybuffer" 返回字节副本。
func (r *Request) Response() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.responseType {
	case TypeDefault, TypeText:
		return string(r.buf)
	case TypeJSON:
		if !gjson.ValidBytes(r.buf) {
			return nil
		}
		return gjson.ParseBytes(r.buf).Value()
	case TypeArrayBuffer:
		out := make([]byte, len(r.buf))
		copy(out, r.buf)
		return out
	}
	return nil
}

// ResponseType 返回当前响应类型
func (r *Request) ResponseType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.responseType
}

// SetResponseType 设置响应解释方式，仅接受 ""/"text"/"json"/"arraybuffer"
func (r *Request) SetResponseType(t string) error {
	switch t {
	case TypeDefault, TypeText, TypeJSON, TypeArrayBuffer:
	default:
		return fmt.Errorf("unsupported response type %q", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseType = t
	return nil
}

// WithCredentials 返回凭据携带标记
func (r *Request) WithCredentials() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.withCredentials
}

// SetWithCredentials 设置凭据携带标记，交换在途时拒绝
func (r *Request) SetWithCredentials(v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent && r.state != Done {
		return &InvalidStateError{Op: "setWithCredentials", State: r.state}
	}
	r.withCredentials = v
	return nil
}

// BytesReceived 返回已累积的响应体字节数
func (r *Request) BytesReceived() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.buf))
}

// GetAllResponseHeaders 返回 CRLF 分隔的 "name: value" 头部串，
// HEADERS_RECEIVED 之前为空串
func (r *Request) GetAllResponseHeaders() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state < HeadersReceived {
		return ""
	}
	return r.respHeaders.Join("\r\n")
}

// GetResponseHeader 大小写不敏感地查询响应头；
// 不存在或早于 HEADERS_RECEIVED 时第二个返回值为 false
func (r *Request) GetResponseHeader(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state < HeadersReceived {
		return "", false
	}
	return r.respHeaders.Lookup(name)
}

// 观察者槽位：赋值替换，传 nil 清除。槽位跨 open 保留。

// SetOnReadyStateChange 设置 readystatechange 观察者
func (r *Request) SetOnReadyStateChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReadyStateChange = fn
}

// SetOnLoad 设置 load 观察者
func (r *Request) SetOnLoad(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLoad = fn
}

// SetOnAbort 设置 abort 观察者
func (r *Request) SetOnAbort(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAbort = fn
}

// SetOnProgress 设置 progress 观察者
func (r *Request) SetOnProgress(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress = fn
}

// SetOnError 设置 error 观察者
func (r *Request) SetOnError(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// SetCompletionHook 设置完成钩子：每次交换无论成败恰好触发一次，
// 且在该交换的全部观察者事件之后，供宿主回收交换级资源
func (r *Request) SetCompletionHook(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = fn
}

// ClearObservers 清空全部观察者槽位与完成钩子，
// 供宿主在销毁前打破与脚本环境的引用环
func (r *Request) ClearObservers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReadyStateChange = nil
	r.onLoad = nil
	r.onAbort = nil
	r.onProgress = nil
	r.onError = nil
	r.onComplete = nil
}

// Snapshot 交换结果快照，供宿主持久化或审计
type Snapshot struct {
	ExchangeID      string
	Method          string
	URL             string
	Status          int
	Outcome         string
	Failure         error
	Bytes           int64
	Duration        time.Duration
	ResponseHeaders traffic.Header
}

// Snapshot 返回当前交换的结果快照
func (r *Request) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dur time.Duration
	if !r.startedAt.IsZero() {
		dur = time.Since(r.startedAt)
	}
	return Snapshot{
		ExchangeID:      r.exchangeID,
		Method:          r.method,
		URL:             r.url,
		Status:          r.status,
		Outcome:         r.outcome,
		Failure:         r.failure,
		Bytes:           int64(len(r.buf)),
		Duration:        dur,
		ResponseHeaders: r.respHeaders.Clone(),
	}
}
