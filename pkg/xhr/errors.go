package xhr

import "fmt"

// InvalidStateError 当前 readyState 下的非法方法调用，
// 同步返回给调用方而不进入事件队列
type InvalidStateError struct {
	Op    string
	State ReadyState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: invalid state %s", e.Op, e.State)
}

// NetworkError 传输层报告的失败，仅通过 error 观察者异步呈现
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AbortError 显式取消，仅通过 abort 观察者异步呈现
type AbortError struct{}

func (e *AbortError) Error() string { return "request aborted" }
