//go:build ignore

// This program writes small RKV1 and RKV2 archives for manual testing.
// Run with: go run generate.go
package main

import (
	"bytes"
	"encoding/binary"
	"os"
)

var files = []struct {
	name    string
	content []byte
}{
	{"test.txt", []byte("Hello, RKV!")},
	{"model.mdl", append([]byte("MDL2"), make([]byte, 124)...)},
	{"texture.dds", []byte("DDS fake texture data")},
}

func main() {
	if err := os.WriteFile("test1.rkv", rkv1(), 0o644); err != nil {
		panic(err)
	}
	if err := os.WriteFile("test2.rkv", rkv2(), 0o644); err != nil {
		panic(err)
	}
}

func rkv1() []byte {
	var buf bytes.Buffer
	offsets := make([]uint32, len(files))
	for i, f := range files {
		offsets[i] = uint32(buf.Len())
		buf.Write(f.content)
	}

	for i, f := range files {
		rec := make([]byte, 64)
		copy(rec[:32], f.name)
		binary.LittleEndian.PutUint32(rec[36:], uint32(len(f.content)))
		binary.LittleEndian.PutUint32(rec[44:], offsets[i])
		buf.Write(rec)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(files)))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	return buf.Bytes()
}

func rkv2() []byte {
	const headerEnd = 4 + 24

	var data bytes.Buffer
	offsets := make([]uint32, len(files))
	for i, f := range files {
		offsets[i] = headerEnd + uint32(data.Len())
		data.Write(f.content)
	}

	var names bytes.Buffer
	nameOffsets := make([]uint32, len(files))
	for i, f := range files {
		nameOffsets[i] = uint32(names.Len())
		names.WriteString(f.name)
		names.WriteByte(0)
	}

	var buf bytes.Buffer
	buf.WriteString("RKV2")
	infoOffset := headerEnd + uint32(data.Len())
	for _, v := range []uint32{uint32(len(files)), uint32(names.Len()), 0, 0, infoOffset, 0} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.Write(data.Bytes())
	for i, f := range files {
		for _, v := range []uint32{nameOffsets[i], 0, uint32(len(f.content)), offsets[i], 0} {
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	buf.Write(names.Bytes())
	return buf.Bytes()
}
