package xhr

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"xhrbridge/internal/dispatch"
	"xhrbridge/internal/logger"
	"xhrbridge/internal/transport"
	"xhrbridge/pkg/traffic"
)

// Request XMLHttpRequest 兼容的请求句柄。
//
// 状态与响应数据只在传输回调或脚本调用中由本状态机写入，写入均发生在
// 对应事件投递到脚本队列之前，因此观察者读到的状态不会早于它所响应的
// 事件。跨 goroutine 的唯一边界是队列投递本身。
//
// 每次 open 递增一个世代计数，已入队但尚未执行的事件携带其产生时的
// 世代，执行前校验，重开、中止或释放后迟到的事件一律作废。
type Request struct {
	mu      sync.Mutex
	queue   *dispatch.Queue
	adapter transport.Adapter
	log     logger.Logger

	state           ReadyState
	method          string
	url             string
	async           bool
	withCredentials bool
	responseType    string

	reqHeaders  traffic.Header
	respHeaders traffic.Header
	status      int
	statusText  string
	buf         []byte

	sent       bool
	released   bool
	gen        uint64
	exchangeID string
	startedAt  time.Time
	outcome    string
	failure    error

	handle   transport.Handle
	complete *sync.Once // 每交换一个，保证完成钩子恰好触发一次

	onReadyStateChange func()
	onLoad             func()
	onAbort            func()
	onProgress         func()
	onError            func()
	onComplete         func()
}

// New 创建请求句柄。queue 是观察者运行的串行执行上下文，
// adapter 执行实际的网络交换。
func New(queue *dispatch.Queue, adapter transport.Adapter, l logger.Logger) *Request {
	if l == nil {
		l = logger.NewNop()
	}
	return &Request{
		queue:      queue,
		adapter:    adapter,
		log:        l,
		reqHeaders: make(traffic.Header),
	}
}

// Open 校验并武装一次新交换。若上一交换仍在途则静默取消重开：
// 旧交换不再触发任何观察者，其完成钩子照常恰好触发一次。
// async=false 同样按异步处理，同步 XHR 不在支持范围内。
func (r *Request) Open(method, url string, async bool) error {
	if method == "" || url == "" {
		return fmt.Errorf("open: method and url must be non-empty")
	}
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return fmt.Errorf("open: handle released")
	}
	if r.sent && r.state != Done {
		if r.handle != nil {
			r.handle.Cancel()
		}
		if r.complete != nil {
			r.postComplete(r.complete)
		}
		r.log.Debug("重开取消在途交换", "exchange", r.exchangeID)
	}
	r.gen++
	r.exchangeID = uuid.NewString()
	r.method = method
	r.url = url
	r.async = async
	r.state = Opened
	r.sent = false
	r.handle = nil
	r.complete = nil
	r.reqHeaders = make(traffic.Header)
	r.respHeaders = nil
	r.status = 0
	r.statusText = ""
	r.buf = nil
	r.outcome = ""
	r.failure = nil
	gen := r.gen
	r.mu.Unlock()

	r.emit(gen, evReadyStateChange)
	return nil
}

// SetRequestHeader 仅在 OPENED 且 send 之前合法，重名覆盖
func (r *Request) SetRequestHeader(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Opened || r.sent {
		return &InvalidStateError{Op: "setRequestHeader", State: r.state}
	}
	r.reqHeaders.Set(name, value)
	return nil
}

// Send 激活传输适配器。仅在 OPENED 合法；一经接受不再同步失败，
// 后续结果只经由观察者呈现。
func (r *Request) Send(body []byte) error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return fmt.Errorf("send: handle released")
	}
	if r.state != Opened || r.sent {
		state := r.state
		r.mu.Unlock()
		return &InvalidStateError{Op: "send", State: state}
	}
	r.sent = true
	r.startedAt = time.Now()
	r.complete = new(sync.Once)
	gen := r.gen
	req := &traffic.Request{
		ID:              r.exchangeID,
		Method:          r.method,
		URL:             r.url,
		Headers:         r.reqHeaders.Clone(),
		WithCredentials: r.withCredentials,
	}
	if len(body) > 0 {
		req.Body = make([]byte, len(body))
		copy(req.Body, body)
	}
	adapter := r.adapter
	r.mu.Unlock()

	cb := transport.Callbacks{
		OnHeaders: func(status int, text string, h traffic.Header) {
			r.transportHeaders(gen, status, text, h)
		},
		OnChunk: func(chunk []byte) { r.transportChunk(gen, chunk) },
		OnDone:  func() { r.transportDone(gen) },
		OnFail:  func(err error, canceled bool) { r.transportFail(gen, err, canceled) },
	}
	h := adapter.Start(req, cb)

	r.mu.Lock()
	if gen == r.gen && !r.released {
		r.handle = h
	} else {
		// Start 返回前已被中止或重开
		h.Cancel()
	}
	r.mu.Unlock()
	r.log.Debug("交换已发起", "exchange", req.ID, "method", req.Method, "url", req.URL)
	return nil
}

// Abort 取消在途交换：强制 DONE，清空响应数据，依次触发
// readystatechange 与 abort，再触发完成钩子。无在途交换时为无操作。
// 此后迟到的传输回调一律废弃。
func (r *Request) Abort() {
	r.mu.Lock()
	if r.released || !r.sent || r.state == Done {
		r.mu.Unlock()
		return
	}
	if r.handle != nil {
		r.handle.Cancel()
		r.handle = nil
	}
	r.buf = nil
	r.respHeaders = nil
	r.status = 0
	r.statusText = ""
	r.state = Done
	r.outcome = OutcomeAbort
	r.failure = &AbortError{}
	r.gen++
	gen := r.gen
	once := r.complete
	exID := r.exchangeID
	r.mu.Unlock()

	r.emit(gen, evReadyStateChange)
	r.emit(gen, evAbort)
	r.postComplete(once)
	r.log.Debug("交换已中止", "exchange", exID)
}

// Release 释放句柄：取消在途交换并作废全部待执行事件。
// 在途交换的完成钩子仍恰好触发一次，便于宿主回收交换级资源。
func (r *Request) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	inflight := r.sent && r.state != Done
	if r.handle != nil {
		r.handle.Cancel()
		r.handle = nil
	}
	if inflight {
		r.state = Done
		r.outcome = OutcomeAbort
		r.failure = &AbortError{}
	}
	r.gen++
	once := r.complete
	r.mu.Unlock()

	if inflight && once != nil {
		r.postComplete(once)
	}
}

// transportHeaders 首个携带状态与头部的回调：原子写入三者并进入 HEADERS_RECEIVED
func (r *Request) transportHeaders(gen uint64, status int, text string, h traffic.Header) {
	r.mu.Lock()
	if gen != r.gen || r.released {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.statusText = text
	r.respHeaders = h
	r.state = HeadersReceived
	r.mu.Unlock()

	r.emit(gen, evReadyStateChange)
}

// transportChunk 追加响应体分片并进入 LOADING（重复进入为无操作）
func (r *Request) transportChunk(gen uint64, chunk []byte) {
	r.mu.Lock()
	if gen != r.gen || r.released {
		r.mu.Unlock()
		return
	}
	r.buf = append(r.buf, chunk...)
	r.state = Loading
	r.mu.Unlock()

	r.emit(gen, evReadyStateChange)
	r.emit(gen, evProgress)
}

// transportDone 成功终结：DONE → readystatechange → load → 完成钩子
func (r *Request) transportDone(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || r.released {
		r.mu.Unlock()
		return
	}
	r.state = Done
	r.outcome = OutcomeLoad
	once := r.complete
	r.mu.Unlock()

	r.emit(gen, evReadyStateChange)
	r.emit(gen, evLoad)
	r.postComplete(once)
}

// transportFail 失败终结。显式取消归入 abort 路径，其余归入 error 路径；
// status 保持失败发生前的取值（头部未达时为 0）。
func (r *Request) transportFail(gen uint64, err error, canceled bool) {
	r.mu.Lock()
	if gen != r.gen || r.released {
		r.mu.Unlock()
		return
	}
	r.state = Done
	once := r.complete
	var terminal eventKind
	if canceled {
		r.outcome = OutcomeAbort
		r.failure = &AbortError{}
		terminal = evAbort
	} else {
		r.outcome = OutcomeError
		r.failure = &NetworkError{Err: err}
		terminal = evError
	}
	r.mu.Unlock()

	r.emit(gen, evReadyStateChange)
	r.emit(gen, terminal)
	r.postComplete(once)
}

// emit 将一类事件投递到脚本队列。投递方立即返回；
// 执行时再校验世代并读取当前槽位，重开或释放后的事件静默作废。
func (r *Request) emit(gen uint64, kind eventKind) {
	r.queue.Post(func() {
		r.mu.Lock()
		if gen != r.gen || r.released {
			r.mu.Unlock()
			return
		}
		fn := r.slot(kind)
		r.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// postComplete 在全部观察者事件之后触发完成钩子，Once 保证每交换一次
func (r *Request) postComplete(once *sync.Once) {
	if once == nil {
		return
	}
	r.queue.Post(func() {
		once.Do(func() {
			r.mu.Lock()
			fn := r.onComplete
			r.mu.Unlock()
			if fn != nil {
				fn()
			}
		})
	})
}

func (r *Request) slot(kind eventKind) func() {
	switch kind {
	case evReadyStateChange:
		return r.onReadyStateChange
	case evProgress:
		return r.onProgress
	case evLoad:
		return r.onLoad
	case evAbort:
		return r.onAbort
	case evError:
		return r.onError
	}
	return nil
}
