//go:build windows

package linechunk

import (
	"syscall"
	"unsafe"
)

var (
	kernel32         = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = kernel32.NewProc("LockFileEx")
	procUnlockFileEx = kernel32.NewProc("UnlockFileEx")
)

const lockfileExclusiveLock = 0x00000002

// wholeFile is the low and high halves of the locked byte count.
const wholeFile = 0xFFFFFFFF

func (l *fileLock) lock(mode LockMode) error {
	var flags uintptr
	if mode == LockExclusive {
		flags = lockfileExclusiveLock
	}
	var ol syscall.Overlapped
	return result(procLockFileEx.Call(l.fd, flags, 0, wholeFile, wholeFile, uintptr(unsafe.Pointer(&ol))))
}

func (l *fileLock) unlock() error {
	var ol syscall.Overlapped
	return result(procUnlockFileEx.Call(l.fd, 0, wholeFile, wholeFile, uintptr(unsafe.Pointer(&ol))))
}

// result interprets the return of a kernel32 call that yields zero on
// failure.
func result(r1, _ uintptr, err error) error {
	if r1 == 0 {
		return err
	}
	return nil
}
