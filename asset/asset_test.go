// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/prism/asset"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func buildArchive(c *qt.C) []byte {
	builder, err := asset.NewBuilder(asset.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	c.Assert(err, qt.IsNil)

	c.Assert(builder.Add("test", bytes.NewReader([]byte(testString1))), qt.IsNil)
	c.Assert(builder.Add("test2", bytes.NewReader([]byte(testString2))), qt.IsNil)

	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	data := buildArchive(c)

	ar, err := asset.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	f, err := ar.Open("test")
	c.Assert(err, qt.IsNil)

	result, err := io.ReadAll(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(result), qt.Equals, testString1)
}

func TestCreateAndReadAll(t *testing.T) {
	c := qt.New(t)
	data := buildArchive(c)

	ar, err := asset.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	second, err := ar.ReadAll("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(string(second), qt.Equals, testString2)

	first, err := ar.ReadAll("test")
	c.Assert(err, qt.IsNil)
	c.Assert(string(first), qt.Equals, testString1)
}

func TestConcurrentReaders(t *testing.T) {
	c := qt.New(t)
	data := buildArchive(c)

	ar, err := asset.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	// Interleaved reads of distinct files do not disturb each other.
	f1, err := ar.Open("test")
	c.Assert(err, qt.IsNil)
	f2, err := ar.Open("test2")
	c.Assert(err, qt.IsNil)

	head := make([]byte, 8)
	_, err = io.ReadFull(f2, head)
	c.Assert(err, qt.IsNil)

	rest1, err := io.ReadAll(f1)
	c.Assert(err, qt.IsNil)
	rest2, err := io.ReadAll(f2)
	c.Assert(err, qt.IsNil)

	c.Assert(string(rest1), qt.Equals, testString1)
	c.Assert(string(head)+string(rest2), qt.Equals, testString2)
}

func TestOpenMissingFile(t *testing.T) {
	c := qt.New(t)
	data := buildArchive(c)

	ar, err := asset.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	_, err = ar.Open("nope")
	c.Assert(err, qt.Equals, asset.ErrNotFound)
}

func TestOpenRejectsForeignData(t *testing.T) {
	c := qt.New(t)

	_, err := asset.Open(bytes.NewReader([]byte("KAR\x00 but not really an archive")))
	c.Assert(err, qt.Equals, asset.ErrFileFormat)
}
