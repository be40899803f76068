// Package generation 提供生成编排与单飞控制
package generation

import "sync"

// InFlight 进程级的账户单飞集合：同一账户最多一个在途生成。
// 成员资格与「请求处于派发到完成之间」严格对应，释放由调用方 defer 保证。
type InFlight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewInFlight 创建单飞集合
func NewInFlight() *InFlight {
	return &InFlight{
		active: make(map[string]struct{}),
	}
}

// TryAcquire 原子地检查并标记账户在途。
// 账户已有在途生成时返回 false，竞争失败是正常可上报结果。
func (f *InFlight) TryAcquire(accountID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.active[accountID]; exists {
		return false
	}
	f.active[accountID] = struct{}{}
	return true
}

// Release 无条件清除在途标记，任何退出路径都必须调用
func (f *InFlight) Release(accountID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.active, accountID)
}

// Len 返回当前在途数量
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.active)
}
