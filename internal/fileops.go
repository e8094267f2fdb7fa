package internal

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func SerializeToFile(data interface{}, file *os.File) (err error) {
	encoder := gob.NewEncoder(file)
	if err = encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}

	return err
}

func DeserializeFromFile(file *os.File, data interface{}) (err error) {
	decoder := gob.NewDecoder(file)
	if err = decoder.Decode(data); err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	return nil
}

func WriteAll(w io.Writer, buf []byte) (int, error) {
	total := 0
	remaining := len(buf)
	for remaining > 0 {
		n, err := w.Write(buf[total:])
		if err != nil {
			return total, fmt.Errorf("failed to write file: %w", err)
		}

		total += n
		remaining -= n
	}

	return total, nil
}

// WriteReadCloserToFile drains r into a new file at path, closing r.
func WriteReadCloserToFile(r io.ReadCloser, path string) (int64, error) {
	defer r.Close()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return n, nil
}

// DiskUsage reports the free and total bytes of the filesystem holding path.
func DiskUsage(path string) (free, total uint64, err error) {
	var st unix.Statfs_t
	if err = unix.Statfs(path, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), st.Blocks * uint64(st.Bsize), nil
}
