package cache

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru"
)

const defaultResultCacheSize = 1024

// ResultCache 分类结果缓存，键为 (规则集版本, URL)
// 规则集变化时版本号递增，旧版本的条目自然失效并被 LRU 淘汰。
type ResultCache[V any] struct {
	lru *lru.Cache
}

// NewResultCache 创建一个容量限制的结果缓存，size <= 0 时使用默认容量
func NewResultCache[V any](size int) (*ResultCache[V], error) {
	if size <= 0 {
		size = defaultResultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ResultCache[V]{lru: c}, nil
}

func resultKey(generation uint64, url string) string {
	return strconv.FormatUint(generation, 10) + "|" + url
}

// Get 获取某个规则集版本下 URL 的缓存结果
func (c *ResultCache[V]) Get(generation uint64, url string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	v, ok := c.lru.Get(resultKey(generation, url))
	if !ok {
		return zero, false
	}
	return v.(V), true
}

// Set 写入结果
func (c *ResultCache[V]) Set(generation uint64, url string, value V) {
	if c == nil {
		return
	}
	c.lru.Add(resultKey(generation, url), value)
}

// Purge 清空缓存
func (c *ResultCache[V]) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len 返回当前条目数
func (c *ResultCache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
