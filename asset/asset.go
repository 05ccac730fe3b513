// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package asset is an api for an lz4 backed archive format.
// It's purpose is to be well suited for streaming resources from it.
// It's designed to be memory mapped, so (unlike tar) it knows where
// all the files are located before they're read. This nescesitates a
// bit of an unusual setup, where the archive itself is not compressed
// in any form, rather every file is individually compressed, so it
// could be immediately read from it's place and decompressed on the
// fly. This somewhat compromises space efficiency, but space
// efficiency is not the primary goal of this package. It instead
// focuses on getting resources from disk to a usable state as fast as
// possible. It can be read from concurrently.
package asset

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a pak archive")
	ErrNotFound   = errors.New("file not present in the archive")
	ErrTempFail   = errors.New("temporary folder or file operation failed")
)

// Sizes relevant to the header of the file.
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 8
)

var magic = [MagicLength]byte{'P', 'A', 'K', '\x00'}

// IndexEntry is info for one file in the file index.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the file header for pak files.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	enc := gob.NewEncoder(&encoded)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(bts))
	return dec.Decode(obj)
}

func int64ToBinary(num int64) []byte {
	out := make([]byte, HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(out, uint64(num))
	return out
}

func binaryToInt64(bts []byte) int64 {
	return int64(binary.LittleEndian.Uint64(bts))
}
