package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"xhrbridge/internal/config"
	"xhrbridge/internal/logger"
	"xhrbridge/pkg/traffic"
)

// HTTPAdapter 基于 net/http 的传输适配器。每个交换独占一个 goroutine，
// 响应体按固定块大小流式读取，取消通过 context 传递。
type HTTPAdapter struct {
	client     *http.Client // 无 Cookie 客户端
	credClient *http.Client // 携带共享 CookieJar 的客户端
	chunkSize  int
	timeout    time.Duration
	log        logger.Logger
}

// NewHTTP 创建 HTTP 传输适配器
func NewHTTP(cfg *config.Config, l logger.Logger) *HTTPAdapter {
	if l == nil {
		l = logger.NewNop()
	}
	chunk := cfg.Transport.ChunkSize
	if chunk <= 0 {
		chunk = 32 * 1024
	}
	jar, _ := cookiejar.New(nil)
	return &HTTPAdapter{
		client:     &http.Client{},
		credClient: &http.Client{Jar: jar},
		chunkSize:  chunk,
		timeout:    time.Duration(cfg.Transport.TimeoutMS) * time.Millisecond,
		log:        l,
	}
}

type httpExchange struct {
	cancel context.CancelFunc
}

func (e *httpExchange) Cancel() { e.cancel() }

// Start 启动一次交换并立即返回取消令牌
func (a *HTTPAdapter) Start(req *traffic.Request, cb Callbacks) Handle {
	var ctx context.Context
	var cancel context.CancelFunc
	if a.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), a.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	ex := &httpExchange{cancel: cancel}
	go func() {
		defer cancel()
		a.run(ctx, req, cb)
	}()
	return ex
}

func (a *HTTPAdapter) run(ctx context.Context, req *traffic.Request, cb Callbacks) {
	start := time.Now()
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		a.fail(ctx, cb, req, err)
		return
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	client := a.client
	if req.WithCredentials {
		client = a.credClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		a.fail(ctx, cb, req, err)
		return
	}
	defer resp.Body.Close()

	headers := make(traffic.Header, len(resp.Header))
	for k := range resp.Header {
		headers.Set(k, resp.Header.Get(k))
	}
	cb.OnHeaders(resp.StatusCode, statusText(resp), headers)

	buf := make([]byte, a.chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			cb.OnChunk(chunk)
		}
		if err == io.EOF {
			a.log.Debug("交换完成", "id", req.ID, "url", req.URL,
				"status", resp.StatusCode, "durationMs", time.Since(start).Milliseconds())
			cb.OnDone()
			return
		}
		if err != nil {
			a.fail(ctx, cb, req, err)
			return
		}
	}
}

// fail 统一的失败终结：区分显式取消与其余传输错误
func (a *HTTPAdapter) fail(ctx context.Context, cb Callbacks, req *traffic.Request, err error) {
	canceled := isCanceled(ctx, err)
	if canceled {
		a.log.Debug("交换已取消", "id", req.ID, "url", req.URL)
	} else {
		a.log.Err(err, "交换失败", "id", req.ID, "url", req.URL)
	}
	cb.OnFail(err, canceled)
}

func isCanceled(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	// 超时归入错误路径而非取消路径
	return ctx.Err() == context.Canceled
}

// statusText 提取状态行原因短语，如 "200 OK" → "OK"
func statusText(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if strings.HasPrefix(resp.Status, prefix) {
		return strings.TrimPrefix(resp.Status, prefix)
	}
	return http.StatusText(resp.StatusCode)
}
