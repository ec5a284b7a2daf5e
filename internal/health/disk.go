package health

import "syscall"

// availableBytes returns the space available to unprivileged users on the
// filesystem holding path.
func availableBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
