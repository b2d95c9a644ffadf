//go:build !unix

package extend

import "errors"

func diskUsage(string) (uint64, uint64, error) {
	return 0, 0, errors.New("media capacity is only available on unix systems")
}
