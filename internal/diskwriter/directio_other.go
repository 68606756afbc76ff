//go:build !linux

package diskwriter

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

var errAllocateUnsupported = errors.New("fallocate not supported")

const directIOSupported = false

func setDirectIO(_ *os.File, _ bool) error {
	return nil
}

func fallocate(_ *os.File, _, _ int64) error {
	return errAllocateUnsupported
}

func writeAligned(f *os.File, p []byte, offset int64) error {
	_, err := f.WriteAt(p, offset)
	return err
}

func readAligned(f *os.File, p []byte, offset int64) (int, error) {
	n, err := f.ReadAt(p, offset)
	if err == io.EOF {
		err = nil
	}
	return n, err
}
