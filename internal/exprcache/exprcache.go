// Package exprcache provides a shared LRU of compiled expr-lang programs,
// keyed by source text, so every package that needs to run small
// expressions (dispatch actions, condeval literals) compiles each distinct
// expression at most once per eviction window.
//
// Extracted from dispatch's former package-private exprCache (itself
// adapted from backend/internal/application/engine/condition_cache.go)
// so condeval can share it without dispatch->condeval->dispatch cycling.
package exprcache

import (
	"container/list"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Cache is an LRU of compiled expr-lang programs.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type entry struct {
	key     string
	program *vm.Program
}

// NewCache builds a Cache holding up to capacity compiled programs.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Compile returns the compiled program for src, compiling and caching it
// on first use and promoting it to most-recently-used on every call.
func (c *Cache) Compile(src string) (*vm.Program, error) {
	c.mu.Lock()
	if el, ok := c.entries[src]; ok {
		c.order.MoveToFront(el)
		program := el.Value.(*entry).program
		c.mu.Unlock()
		return program, nil
	}
	c.mu.Unlock()

	program, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[src]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*entry).program, nil
	}
	el := c.order.PushFront(&entry{key: src, program: program})
	c.entries[src] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}
	return program, nil
}
