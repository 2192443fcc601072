package utils

import bferrors "govetachun/bufpool/pkg/errors"

// Assert panics with an AllocatorError if condition is false. It is the
// single invariant-checking primitive used by the buddy tree, the subpage
// bitmap, and the chunk orchestrator; per the allocator's error-handling
// design these are programming errors, never part of normal control flow.
func Assert(condition bool, message string) {
	if !condition {
		panic(bferrors.NewInvariant(message))
	}
}

// AssertCode is like Assert but lets the caller pick a more specific error
// code than ErrCodeInvariant.
func AssertCode(condition bool, code int, message string) {
	if !condition {
		panic(bferrors.New(code, message, nil))
	}
}

// IsPowerOfTwo reports whether n is a power of two (n > 0).
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns floor(log2(n)) for n > 0.
func Log2(n uint64) uint {
	var d uint
	for n > 1 {
		n >>= 1
		d++
	}
	return d
}
