package dispatch

import "sync"

// Queue 串行任务队列。唯一一个内部 goroutine 按提交顺序执行全部任务，
// 充当脚本侧的单线程执行上下文：任意时刻至多一个任务在运行，
// 且任务 N 完整结束后任务 N+1 才开始。
//
// Post 端不设容量上限：传输回调所在的 goroutine 不允许被脚本队列
// 反压阻塞，生命周期事件也不允许被丢弃。
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

// New 创建并启动串行队列
func New() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Post 将任务追加到队尾并立即返回，不等待执行。
// 队列已关闭时任务被丢弃并返回 false。
func (q *Queue) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
	q.mu.Unlock()
	return true
}

// Join 阻塞直到此前提交的全部任务执行完毕。
// 禁止在队列自身的任务中调用，否则死锁。
func (q *Queue) Join() {
	ch := make(chan struct{})
	if !q.Post(func() { close(ch) }) {
		return
	}
	<-ch
}

// Close 停止队列：已入队任务全部执行完后退出内部 goroutine，
// 之后的 Post 一律丢弃。阻塞直到退出完成。
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			// closed 且已排空
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		fn()
	}
}
