//go:build !windows

package cache

import "syscall"

// flockLock takes an exclusive advisory lock on the extraction cache file,
// blocking until any concurrent ingestion releases it.
func flockLock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX)
}

// flockUnlock releases the advisory lock.
func flockUnlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
