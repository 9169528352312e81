package chat

import (
	"sync"
	"sync/atomic"

	"PRelay/tools/safe"

	"github.com/cespare/xxhash/v2"
)

type fanoutJob struct {
	conns   []*Session
	payload []byte
}

// Fanout 广播工作池。同一个 key 固定落到同一个 worker，保证同 key 的帧顺序；
// workers<=0 时在调用方协程内直接投递。
type Fanout struct {
	queues  []chan fanoutJob
	wg      sync.WaitGroup
	closed  atomic.Bool
	mu      sync.RWMutex
	dropped atomic.Int64
}

func NewFanout(workers, queue int) *Fanout {
	f := &Fanout{}
	if queue <= 0 {
		queue = 1
	}
	for i := 0; i < workers; i++ {
		q := make(chan fanoutJob, queue)
		f.queues = append(f.queues, q)
		f.wg.Add(1)
		safe.Go("fanout-worker", func() {
			defer f.wg.Done()
			for job := range q {
				f.deliver(job)
			}
		})
	}
	return f
}

func (f *Fanout) deliver(job fanoutJob) {
	for _, c := range job.conns {
		// 慢客户端：队列满直接跳过
		if !c.Emit(job.payload) {
			f.dropped.Add(1)
		}
	}
}

// Broadcast 把 payload 投递给 conns
func (f *Fanout) Broadcast(key string, conns []*Session, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	job := fanoutJob{conns: conns, payload: payload}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.queues) == 0 || f.closed.Load() {
		f.deliver(job)
		return
	}
	f.queues[xxhash.Sum64String(key)%uint64(len(f.queues))] <- job
}

// Dropped 因接收方队列满而跳过的次数
func (f *Fanout) Dropped() int64 { return f.dropped.Load() }

// Close 等待已排队的任务投递完
func (f *Fanout) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	f.mu.Lock()
	for _, q := range f.queues {
		close(q)
	}
	f.mu.Unlock()
	f.wg.Wait()
}
