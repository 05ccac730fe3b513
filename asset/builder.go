// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/pierrec/lz4"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) (*Builder, error) {
	temp, err := os.MkdirTemp("", "pakBuilder")
	if err != nil {
		return nil, ErrTempFail
	}
	builder := &Builder{
		tempDir: temp,
		header:  header,
	}
	// TODO: Not sure if this is a good place to clean up.
	// Measure if GC will take a hit later.
	runtime.SetFinalizer(builder, func(builder *Builder) {
		os.RemoveAll(builder.tempDir)
	})
	return builder, nil
}

type tempFile struct {

	// Name is the actual name of the file
	Name string

	// TempName is the temporary name given by the Builder
	TempName string

	// Size uncompressed
	Size int64

	Compressed int64
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, this Builder
// is the way to create an archive. Whenever Add is called, the
// Builder stores the compressed file in a temporary dir, then
// finally bundles them together and writes them out with WriteTo.
type Builder struct {
	io.WriterTo

	tempDir string
	header  Header

	mutex sync.Mutex
	files []tempFile
}

// Add appends the contents of r to the builder with a given name.
// Will block until lz4 finishes compression. Is safe to use
// concurrently in different goroutines.
func (b *Builder) Add(name string, r io.Reader) error {
	b.mutex.Lock()
	tempName := strconv.Itoa(len(b.files))
	b.mutex.Unlock()

	f, err := os.Create(filepath.Join(b.tempDir, tempName))
	if err != nil {
		return ErrTempFail
	}
	defer f.Close()

	writer := lz4.NewWriter(f)
	written, err := io.Copy(writer, r)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return ErrTempFail
	}
	info, err := f.Stat()
	if err != nil {
		return ErrTempFail
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files = append(b.files, tempFile{
		Name:       name,
		TempName:   tempName,
		Size:       written,
		Compressed: info.Size(),
	})
	return nil
}

// WriteTo bundles and writes all of the files added to the Builder
// into a pak archive that is ready to use. Implements io.WriterTo.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	// Offsets are relative to the start of the data section, they
	// stay valid no matter how the header encodes.
	header := b.header
	header.Index = make([]IndexEntry, 0, len(b.files))
	var offset int64
	for _, v := range b.files {
		header.Index = append(header.Index, IndexEntry{
			Name:           v.Name,
			Offset:         offset,
			Size:           v.Size,
			CompressedSize: v.Compressed,
		})
		offset += v.Compressed
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var total int64
	count := func(n int, err error) error {
		total += int64(n)
		return err
	}
	if err := count(w.Write(magic[:])); err != nil {
		return total, err
	}
	if err := count(w.Write(int64ToBinary(int64(len(rawHeader))))); err != nil {
		return total, err
	}
	if err := count(w.Write(rawHeader)); err != nil {
		return total, err
	}

	for _, v := range b.files {
		f, err := os.Open(filepath.Join(b.tempDir, v.TempName))
		if err != nil {
			return total, ErrTempFail
		}
		copied, err := io.Copy(w, f)
		f.Close()
		total += copied
		if err != nil {
			return total, err
		}
	}

	b.files = b.files[:0]
	return total, nil
}
