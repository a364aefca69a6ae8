package cache

import (
	"sync/atomic"

	"envbadge/glob"

	radix "github.com/hashicorp/go-immutable-radix"
	"golang.org/x/sync/singleflight"
)

// MatcherCache 编译后模式的缓存 (原始模式字符串 -> *glob.Matcher)
// 使用不可变 Radix Tree 实现：读取无锁，写入时复制新树并原子替换指针。
// 编译是纯函数，所以并发写入丢失一次插入也只会导致重复编译，不影响正确性。
type MatcherCache struct {
	tree   atomic.Pointer[radix.Tree]
	flight singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMatcherCache 创建一个空的模式缓存
func NewMatcherCache() *MatcherCache {
	c := &MatcherCache{}
	c.tree.Store(radix.New())
	return c
}

// Get 返回模式对应的 Matcher，不存在时编译并写入缓存
func (c *MatcherCache) Get(pattern string) *glob.Matcher {
	if v, ok := c.tree.Load().Get([]byte(pattern)); ok {
		c.hits.Add(1)
		return v.(*glob.Matcher)
	}
	c.misses.Add(1)

	// 同一模式的并发未命中只编译一次
	v, _, _ := c.flight.Do(pattern, func() (interface{}, error) {
		m := glob.Compile(pattern)
		for {
			old := c.tree.Load()
			// 另一个调用方可能已经写入
			if existing, ok := old.Get([]byte(pattern)); ok {
				return existing, nil
			}
			newTree, _, _ := old.Insert([]byte(pattern), m)
			if c.tree.CompareAndSwap(old, newTree) {
				return m, nil
			}
		}
	})
	return v.(*glob.Matcher)
}

// Len 返回缓存的模式数量
func (c *MatcherCache) Len() int {
	return c.tree.Load().Len()
}

// Stats returns the hit and miss counters.
func (c *MatcherCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Clear 丢弃所有缓存的 Matcher
func (c *MatcherCache) Clear() {
	c.tree.Store(radix.New())
}
