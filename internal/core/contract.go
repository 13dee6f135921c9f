package core

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ContractViolation is the panic value raised by a failed check in strict mode.
type ContractViolation struct {
	Message string
}

func (c *ContractViolation) Error() string {
	return "contract violation: " + c.Message
}

var (
	strict     atomic.Bool
	violations atomic.Uint64
)

func init() {
	strict.Store(strictDefault)
}

// SetStrict switches between panicking and logging on contract violations.
// It returns the previous setting.
func SetStrict(on bool) bool {
	return strict.Swap(on)
}

// Strict reports whether contract violations panic.
func Strict() bool {
	return strict.Load()
}

// Violations returns the number of contract violations logged since start.
func Violations() uint64 {
	return violations.Load()
}

// Checkf asserts cond. A failed check panics in strict mode; otherwise it is
// logged and counted, and the caller is expected to clamp to a safe value.
// It returns cond so callers can write `if !core.Checkf(...) { clamp }`.
func Checkf(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if strict.Load() {
		panic(&ContractViolation{Message: msg})
	}
	violations.Add(1)
	logger.WithFields(logrus.Fields{"contract": "violated"}).Error(msg)
	return false
}
