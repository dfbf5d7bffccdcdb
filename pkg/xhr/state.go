package xhr

// ReadyState 请求生命周期的五个阶段
type ReadyState int

const (
	Unsent          ReadyState = iota // open() 尚未调用
	Opened                            // send() 尚未调用
	HeadersReceived                   // 头部与状态码已可用
	Loading                           // 下载中，responseText 持有部分数据
	Done                              // 操作已完成
)

// String 返回状态名称
func (s ReadyState) String() string {
	switch s {
	case Unsent:
		return "UNSENT"
	case Opened:
		return "OPENED"
	case HeadersReceived:
		return "HEADERS_RECEIVED"
	case Loading:
		return "LOADING"
	case Done:
		return "DONE"
	}
	return "UNKNOWN"
}

// eventKind 观察者事件类别，每类对应一个可替换的回调槽位
type eventKind int

const (
	evReadyStateChange eventKind = iota
	evProgress
	evLoad
	evAbort
	evError
)

// 交换终结结果
const (
	OutcomeLoad  = "load"
	OutcomeError = "error"
	OutcomeAbort = "abort"
)

// ResponseType 合法取值
const (
	TypeDefault     = ""
	TypeText        = "text"
	TypeJSON        = "json"
	TypeArrayBuffer = "arraybuffer"
)
