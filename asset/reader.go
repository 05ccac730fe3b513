// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4"
)

// Open opens the pak archive from r. It will also check if the file
// is actually a pak archive, will return an error when the file is
// incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	magicBytes := make([]byte, MagicLength)
	if num, err := r.ReadAt(magicBytes, 0); err != nil {
		return nil, err
	} else if num < MagicLength || !bytes.Equal(magicBytes, magic[:]) {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, err
	} else if num < HeaderSizeNumberLength {
		return nil, ErrFileFormat
	}
	headerSize := binaryToInt64(headerSizeBytes)
	if headerSize <= 0 {
		return nil, ErrFileFormat
	}

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, err
	} else if int64(num) < headerSize {
		return nil, ErrFileFormat
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, ErrFileFormat
	}

	index := make(map[string]IndexEntry, len(header.Index))
	for _, e := range header.Index {
		index[e.Name] = e
	}
	return &Archive{
		reader:    r,
		header:    header,
		index:     index,
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
	}, nil
}

// Archive provides concurrent io for a pak file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader    io.ReaderAt
	header    Header
	index     map[string]IndexEntry
	dataStart int64
}

// Header returns the decoded archive header.
func (a *Archive) Header() Header {
	return a.header
}

// ReadAll returns the entire contents of a file with a given name.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Open returns a Reader for a file in the Archive. Readers of
// distinct files are independent and can be used concurrently.
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.index[name]
	if !ok {
		return nil, ErrNotFound
	}
	section := io.NewSectionReader(a.reader, a.dataStart+entry.Offset, entry.CompressedSize)
	return &Reader{
		decoder: lz4.NewReader(section),
		remain:  entry.Size,
	}, nil
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	decoder io.Reader
	remain  int64
}

// Read reads already decompressed data. Implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remain {
		p = p[:r.remain]
	}
	n, err := r.decoder.Read(p)
	r.remain -= int64(n)
	if err == io.EOF {
		if r.remain > 0 {
			err = io.ErrUnexpectedEOF
		} else if n > 0 {
			err = nil
		}
	}
	return n, err
}
