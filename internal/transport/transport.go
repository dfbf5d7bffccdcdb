package transport

import "xhrbridge/pkg/traffic"

// Callbacks 单次交换的回调集合。适配器保证按交换串行触发：
// OnHeaders 至多一次，OnChunk 零次或多次，随后恰好一个终结回调
// （OnDone 或 OnFail），且终结回调之后不再有任何触发。
// 回调在适配器自己的 goroutine 上执行，不在脚本队列上。
type Callbacks struct {
	OnHeaders func(status int, statusText string, headers traffic.Header)
	OnChunk   func(chunk []byte)
	OnDone    func()
	OnFail    func(err error, canceled bool)
}

// Handle 进行中交换的取消令牌
type Handle interface {
	// Cancel 请求取消交换，幂等。取消生效后仍会收到一次
	// canceled 标记的 OnFail 作为终结回调。
	Cancel()
}

// Adapter 原生传输契约：每次 Start 执行一个完整的 HTTP 交换
type Adapter interface {
	Start(req *traffic.Request, cb Callbacks) Handle
}
