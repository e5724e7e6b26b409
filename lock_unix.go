//go:build unix

package linechunk

import "syscall"

var flockOps = [...]int{
	LockShared:    syscall.LOCK_SH,
	LockExclusive: syscall.LOCK_EX,
}

// lock blocks until the lock is granted.
func (l *fileLock) lock(mode LockMode) error {
	return flock(l.fd, flockOps[mode])
}

func (l *fileLock) unlock() error {
	return flock(l.fd, syscall.LOCK_UN)
}

// flock retries when a signal interrupts the wait.
func flock(fd uintptr, how int) error {
	for {
		err := syscall.Flock(int(fd), how)
		if err != syscall.EINTR {
			return err
		}
	}
}
