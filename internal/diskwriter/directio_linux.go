//go:build linux

package diskwriter

import (
	"io"
	"os"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var errAllocateUnsupported = errors.New("fallocate not supported")

const directIOSupported = true

func setDirectIO(f *os.File, enabled bool) error {
	fd := int(f.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return err
	}
	if enabled {
		flags |= unix.O_DIRECT
	} else {
		flags &^= unix.O_DIRECT
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	return err
}

func fallocate(f *os.File, offset, length int64) error {
	err := unix.Fallocate(int(f.Fd()), 0, offset, length)
	if err == unix.EOPNOTSUPP || err == unix.ENOSYS {
		return errAllocateUnsupported
	}
	return err
}

// blockRange widens [offset, offset+length) to whole direct I/O blocks.
func blockRange(offset int64, length int) (start, end int64) {
	bs := int64(directio.BlockSize)
	start = offset / bs * bs
	end = (offset + int64(length) + bs - 1) / bs * bs
	return start, end
}

// writeAligned writes p through a block aligned buffer. Partial blocks at
// either edge are read back first so the bytes around p survive.
func writeAligned(f *os.File, p []byte, offset int64) error {
	fd := int(f.Fd())
	start, end := blockRange(offset, len(p))
	buf := directio.AlignedBlock(int(end - start))
	head := int(offset - start)
	if head != 0 || int64(len(p)) != end-start {
		// Past end of file the buffer stays zeroed.
		if _, err := unix.Pread(fd, buf, start); err != nil {
			return err
		}
	}
	copy(buf[head:], p)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return err
	}
	n, err := unix.Pwrite(fd, buf, start)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return io.ErrShortWrite
	}
	// The last block may have grown the file beyond the written data.
	if dataEnd := offset + int64(len(p)); end > st.Size && dataEnd < end {
		return unix.Ftruncate(fd, max(st.Size, dataEnd))
	}
	return nil
}

// readAligned reads into p through a block aligned buffer. A count below
// len(p) means end of file.
func readAligned(f *os.File, p []byte, offset int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	start, end := blockRange(offset, len(p))
	buf := directio.AlignedBlock(int(end - start))
	n, err := unix.Pread(int(f.Fd()), buf, start)
	if err != nil {
		return 0, err
	}
	head := int(offset - start)
	if n <= head {
		return 0, nil
	}
	return copy(p, buf[head:n]), nil
}
