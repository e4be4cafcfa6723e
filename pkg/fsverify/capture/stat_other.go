//go:build !linux && !darwin && !freebsd

package capture

func lstat(string) (statInfo, error) {
	return statInfo{}, ErrUnsupported
}
