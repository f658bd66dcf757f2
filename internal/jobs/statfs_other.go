//go:build !linux && !darwin

package jobs

import "fmt"

func statfs(dir string) (freeBlocks, blockSize uint64, err error) {
	return 0, 0, fmt.Errorf("statfs: unsupported platform")
}
