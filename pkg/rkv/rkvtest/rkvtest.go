// Package rkvtest builds RKV archives in memory for tests.
package rkvtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/tyviewer/pkg/encoding"
)

// Entry is one file stored in a built archive.
type Entry struct {
	Name string
	Data []byte
}

const (
	rkv1RecordSize = 64
	rkv1FolderSize = 256
	rkv1NameSize   = 32
)

// RKV1 builds an RKV1 archive: data blobs, folder table, file records and
// the (files, folders) trailer. Names are stored as Windows-1252. Record i carries date 0x3F000000+i.
func RKV1(entries []Entry, folders int) []byte {
	var buf bytes.Buffer
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		offsets[i] = uint32(buf.Len())
		buf.Write(e.Data)
	}

	for i := 0; i < folders; i++ {
		folder := make([]byte, rkv1FolderSize)
		copy(folder, "folder")
		buf.Write(folder)
	}

	for i, e := range entries {
		rec := make([]byte, rkv1RecordSize)
		copy(rec, encoding.UTF8ToFixedString(e.Name, rkv1NameSize))
		binary.LittleEndian.PutUint32(rec[36:], uint32(len(e.Data)))
		binary.LittleEndian.PutUint32(rec[44:], offsets[i])
		binary.LittleEndian.PutUint32(rec[52:], 0x3F000000+uint32(i))
		buf.Write(rec)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	binary.Write(&buf, binary.LittleEndian, uint32(folders))
	return buf.Bytes()
}

// RKV2 builds an RKV2 archive: magic, header, data blobs, 20-byte entries
// and the name block.
func RKV2(entries []Entry) []byte {
	const headerEnd = 4 + 24

	var data bytes.Buffer
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		offsets[i] = headerEnd + uint32(data.Len())
		data.Write(e.Data)
	}
	infoOffset := headerEnd + uint32(data.Len())

	var names bytes.Buffer
	nameOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		nameOffsets[i] = uint32(names.Len())
		names.Write(encoding.UTF8ToWindows1252(e.Name))
		names.WriteByte(0)
	}

	var buf bytes.Buffer
	buf.WriteString("RKV2")
	for _, v := range []uint32{uint32(len(entries)), uint32(names.Len()), 0, 0, infoOffset, 0} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.Write(data.Bytes())
	for i, e := range entries {
		for _, v := range []uint32{nameOffsets[i], 0, uint32(len(e.Data)), offsets[i], 0xC0FFEE} {
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	buf.Write(names.Bytes())
	return buf.Bytes()
}

// WriteFile stores data as an archive in a temporary directory and returns its path.
func WriteFile(t testing.TB, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rkv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return path
}
