package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"xhrbridge/internal/config"
	"xhrbridge/internal/dispatch"
	"xhrbridge/internal/logger"
	"xhrbridge/internal/storage"
	"xhrbridge/internal/transport"
	"xhrbridge/pkg/xhr"
)

// HandleID 请求句柄标识
type HandleID string

// Event 宿主可订阅的交换生命周期事件
type Event struct {
	Type      string   `json:"type"` // load / error / abort
	Handle    HandleID `json:"handle"`
	Method    string   `json:"method"`
	URL       string   `json:"url"`
	Status    int      `json:"status"`
	Timestamp int64    `json:"timestamp"`
}

// Service 服务接口：宿主（脚本引擎嵌入层）创建与管理请求句柄的入口
type Service interface {
	// NewHandle 创建请求句柄并登记到跟踪表，触发构造钩子。
	// 句柄的完成钩子由服务占用（交换落库与事件广播），
	// 宿主应经 SubscribeEvents 感知交换终局
	NewHandle() (HandleID, *xhr.Request, error)

	// Get 获取句柄
	Get(id HandleID) (*xhr.Request, bool)

	// Release 释放句柄：取消在途交换并作废其待执行事件
	Release(id HandleID) error

	// ListExchanges 返回最近的交换日志
	ListExchanges(limit int) ([]storage.ExchangeRecord, error)

	// SubscribeEvents 订阅交换终结事件
	SubscribeEvents() <-chan Event

	// Close 释放全部句柄并停止脚本队列
	Close() error
}

// Options 服务构建选项
type Options struct {
	Config *config.Config
	Logger logger.Logger

	// Adapter 传输适配器，缺省使用 HTTP 适配器
	Adapter transport.Adapter

	// OnNewHandle 构造钩子：每个新句柄创建后回调，供宿主做
	// 嵌入相关的初始化（例如导出到脚本上下文）
	OnNewHandle func(HandleID, *xhr.Request)

	// DisableStore 为 true 时不落库交换日志
	DisableStore bool
}

type service struct {
	mu      sync.RWMutex
	handles map[HandleID]*xhr.Request
	closed  bool

	queue   *dispatch.Queue
	adapter transport.Adapter
	store   *storage.Store
	log     logger.Logger
	events  chan Event
	onNew   func(HandleID, *xhr.Request)
}

// New 创建并返回服务实现
func New(opts Options) (Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}
	adapter := opts.Adapter
	if adapter == nil {
		adapter = transport.NewHTTP(cfg, l)
	}
	s := &service{
		handles: make(map[HandleID]*xhr.Request),
		queue:   dispatch.New(),
		adapter: adapter,
		log:     l,
		events:  make(chan Event, 128),
		onNew:   opts.OnNewHandle,
	}
	if !opts.DisableStore && cfg.Sqlite.Dsn != "" {
		store, err := storage.Open(cfg, l)
		if err != nil {
			s.queue.Close()
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

func (s *service) NewHandle() (HandleID, *xhr.Request, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", nil, fmt.Errorf("service closed")
	}
	id := HandleID(uuid.NewString())
	r := xhr.New(s.queue, s.adapter, s.log.With("handle", string(id)))
	r.SetCompletionHook(func() { s.exchangeComplete(id, r) })
	s.handles[id] = r
	s.mu.Unlock()

	s.log.Debug("创建请求句柄", "handle", string(id))
	if s.onNew != nil {
		s.onNew(id, r)
	}
	return id, r, nil
}

func (s *service) Get(id HandleID) (*xhr.Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.handles[id]
	return r, ok
}

func (s *service) Release(id HandleID) error {
	s.mu.Lock()
	r, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown handle %s", id)
	}
	r.Release()
	s.log.Debug("释放请求句柄", "handle", string(id))
	return nil
}

func (s *service) ListExchanges(limit int) ([]storage.ExchangeRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(limit)
}

func (s *service) SubscribeEvents() <-chan Event {
	return s.events
}

func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := make([]*xhr.Request, 0, len(s.handles))
	for _, r := range s.handles {
		handles = append(handles, r)
	}
	s.handles = make(map[HandleID]*xhr.Request)
	s.mu.Unlock()

	for _, r := range handles {
		r.Release()
	}
	s.queue.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// exchangeComplete 完成钩子：落库交换记录并广播终结事件。
// 运行在脚本队列上，该交换的全部观察者事件此时均已派发完毕。
func (s *service) exchangeComplete(id HandleID, r *xhr.Request) {
	snap := r.Snapshot()
	if snap.Outcome == "" {
		// 静默重开取消的旧交换：句柄已被新交换复用，无可记录的终局
		return
	}
	if s.store != nil {
		rec := &storage.ExchangeRecord{
			ExchangeID: snap.ExchangeID,
			HandleID:   string(id),
			Method:     snap.Method,
			URL:        snap.URL,
			Status:     snap.Status,
			Outcome:    snap.Outcome,
			Bytes:      snap.Bytes,
			DurationMS: snap.Duration.Milliseconds(),
			Headers:    storage.HeadersJSON(snap.ResponseHeaders),
		}
		if snap.Failure != nil {
			rec.Failure = snap.Failure.Error()
		}
		if err := s.store.Save(rec); err != nil {
			s.log.Err(err, "交换记录落库失败", "exchange", snap.ExchangeID)
		}
	}
	s.sendEvent(Event{
		Type:   snap.Outcome,
		Handle: id,
		Method: snap.Method,
		URL:    snap.URL,
		Status: snap.Status,
	})
}

// sendEvent 非阻塞发送事件，订阅方迟滞时丢弃
func (s *service) sendEvent(evt Event) {
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case s.events <- evt:
	default:
	}
}
