package session

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ArchiveLog compresses a raw capture to path+".zst" and removes the
// original. It is only used once a session has been finalized successfully;
// failed sessions keep their raw log for a manual re-run.
func ArchiveLog(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("archive log: %w", err)
	}
	defer src.Close()

	dstPath := path + ".zst"
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("archive log: %w", err)
	}

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("archive log: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("archive log: %w", err)
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return "", fmt.Errorf("archive log: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("archive log: %w", err)
	}

	src.Close()
	if err := os.Remove(path); err != nil {
		return dstPath, fmt.Errorf("archive log: removing original: %w", err)
	}
	return dstPath, nil
}

// ReadArchivedLog decompresses an archived raw capture.
func ReadArchivedLog(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read archived log: %w", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read archived log: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
