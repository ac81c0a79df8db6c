package utils

import (
	"log"
	"runtime/debug"
)

// SafeGo 拦截 panic 的 goroutine
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[SafeGo] panic recovered: %v\n%s", err, debug.Stack())
			}
		}()
		fn()
	}()
}
