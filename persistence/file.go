package persistence

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/vecache/vectorstore"
)

// ioBufferSize is the buffered reader/writer size used for files.
const ioBufferSize = 256 * 1024

// SaveToFile writes a file atomically: writeFunc fills a temp file in the
// target directory, which is synced and renamed over filename. On any error
// the previous file, if any, is left untouched.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, ioBufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}
	tmpName = ""

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(bufio.NewReaderSize(f, ioBufferSize))
}

// Save encodes v to filename atomically.
func Save(filename string, v vectorstore.View) error {
	return SaveToFile(filename, func(w io.Writer) error {
		return Encode(w, v)
	})
}

// Load decodes the buffer stored in filename.
func Load(filename string) (*vectorstore.Buffer, error) {
	var b *vectorstore.Buffer
	err := LoadFromFile(filename, func(r io.Reader) error {
		var err error
		b, err = Decode(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
