package session

import (
	"context"
	"sync"
	"time"

	"datachat-cli/internal/model"
	"datachat-cli/internal/store"
)

// writeTimeout 单次存储写入的超时
const writeTimeout = 10 * time.Second

type opKind int

const (
	opPut opKind = iota
	opDelete
)

// op 一次待执行的存储操作
type op struct {
	kind    opKind
	id      string
	session model.Session
}

// persister 后台串行写入存储
// 同一会话的新操作覆盖尚未执行的旧操作（只保留最新快照），并排到队尾，
// 这样 Put 移到最前的语义与操作发生的顺序一致
type persister struct {
	store   *store.Store
	onError func(error)

	mu      sync.Mutex
	pending []op
	busy    bool
	waiters []chan struct{}
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newPersister(st *store.Store, onError func(error)) *persister {
	p := &persister{
		store:   st,
		onError: onError,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue 加入队列，返回 false 表示已关闭
func (p *persister) enqueue(o op) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	kept := p.pending[:0]
	for _, existing := range p.pending {
		if existing.id != o.id {
			kept = append(kept, existing)
		}
	}
	p.pending = append(kept, o)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// flush 等待队列清空
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.pending) == 0 && !p.busy {
		p.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close 先拒绝新的写入，再写完剩余操作后停止
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.flush(ctx)
	close(p.stop)
	<-p.done
	return err
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
			p.drain()
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.busy = false
			waiters := p.waiters
			p.waiters = nil
			p.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.busy = true
		p.mu.Unlock()

		if err := p.apply(next); err != nil && p.onError != nil {
			p.onError(err)
		}
	}
}

func (p *persister) apply(o op) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch o.kind {
	case opDelete:
		return p.store.Delete(ctx, o.id)
	default:
		return p.store.Put(ctx, o.session)
	}
}
