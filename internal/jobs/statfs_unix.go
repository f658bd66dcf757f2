//go:build linux || darwin

package jobs

import "syscall"

func statfs(dir string) (freeBlocks, blockSize uint64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, 0, err
	}
	return uint64(st.Bfree), uint64(st.Bsize), nil
}
