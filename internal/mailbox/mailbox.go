// Package mailbox 提供"最新值覆盖"的单槽信箱
//
// 写入无条件覆盖旧值；读取是非破坏性的，多个消费者可以独立观察
// 同一个最新值。读数自带时间戳，过期判断由消费者完成，写入方永远
// 不会被慢消费者阻塞。
package mailbox

import "sync"

// Mailbox 单槽信箱。每个信箱只有一个写入方，读取方任意多。
type Mailbox[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// New 创建空信箱
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Store 覆盖写入最新值
func (m *Mailbox[T]) Store(v T) {
	m.mu.Lock()
	m.value = v
	m.set = true
	m.mu.Unlock()
}

// Peek 非破坏性读取最新值；信箱为空时返回 false
func (m *Mailbox[T]) Peek() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.set
}
