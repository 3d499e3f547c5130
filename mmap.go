package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// archiveView is a read-only view of the archive file for one call. With mmap
// the zip reader works on the mapped bytes; otherwise it reads the file
// directly.
type archiveView struct {
	file *os.File
	mmap []byte
	size int64
}

func openView(path string, useMmap bool) (*archiveView, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	v := &archiveView{file: f, size: st.Size()}
	if useMmap && v.size > 0 {
		m, err := unix.Mmap(int(f.Fd()), 0, int(v.size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap archive: %w", err)
		}
		v.mmap = m
	}
	return v, nil
}

func (v *archiveView) readerAt() io.ReaderAt {
	if v.mmap != nil {
		return bytes.NewReader(v.mmap)
	}
	return v.file
}

func (v *archiveView) Close() error {
	var firstErr error
	if v.mmap != nil {
		if err := unix.Munmap(v.mmap); err != nil {
			firstErr = fmt.Errorf("munmap archive: %w", err)
		}
		v.mmap = nil
	}
	if err := v.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close archive: %w", err)
	}
	return firstErr
}
