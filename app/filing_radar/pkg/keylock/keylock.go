package keylock

import "sync"

// Registry 按 key 划分的互斥集合；inflight 记录当前持有锁的 key，释放后删除
type Registry struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// New 创建独立的锁集合
func New() *Registry {
	return &Registry{inflight: make(map[string]struct{})}
}

// TryLock 不阻塞地获取 key 的锁；成功时返回释放函数
func (r *Registry) TryLock(key string) (unlock func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.inflight[key]; held {
		return nil, false
	}
	r.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.inflight, key)
			r.mu.Unlock()
		})
	}, true
}

// Held 报告 key 当前是否有生成在进行；只读，不占锁也不登记 key
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.inflight[key]
	return held
}

// Len 当前持有锁的 key 数量
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
