// Package rkv provides reading functionality for TY RKV1/RKV2 archives.
package rkv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Faultbox/tyviewer/pkg/encoding"
)

const rkv2Magic = "RKV2"

const (
	rkv1TrailerSize    = 8
	rkv1FileRecordSize = 64
	rkv1FolderSize     = 256
	rkv1NameSize       = 32

	rkv2HeaderSize = 24
	rkv2EntrySize  = 20
	rkv2MaxName    = 0x100
)

var (
	ErrEmptyArchive   = errors.New("archive is empty")
	ErrTruncatedTable = errors.New("file table exceeds archive size")
	ErrFileNotFound   = errors.New("file not found")
	ErrEmptyFile      = errors.New("file entry has zero size")
)

// Version identifies the archive container layout.
type Version int

const (
	VersionRKV1 Version = iota + 1
	VersionRKV2
)

func (v Version) String() string {
	switch v {
	case VersionRKV1:
		return "RKV1"
	case VersionRKV2:
		return "RKV2"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// File is an entry of the archive's file table.
type File struct {
	Name   string
	Folder uint32
	Size   uint32
	Offset uint32
	Date   uint32
	CRC    uint32
}

// Ext returns the lowercased extension of the entry name without the dot.
func (f *File) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
}

// Archive represents an opened RKV archive. The underlying file is reopened
// for every read, so an Archive holds no open handle.
type Archive struct {
	path    string
	size    int64
	version Version
	files   map[string]*File
}

// Open reads the file table of the archive at path.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyArchive
	}

	archive := &Archive{
		path:  path,
		size:  info.Size(),
		files: make(map[string]*File),
	}

	magic := make([]byte, 4)
	if _, err := file.ReadAt(magic, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading magic: %w", err)
	}

	if string(magic) == rkv2Magic {
		archive.version = VersionRKV2
		err = archive.readRKV2Table(file)
	} else {
		archive.version = VersionRKV1
		err = archive.readRKV1Table(file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s file table: %w", archive.version, err)
	}

	return archive, nil
}

func (a *Archive) readRKV1Table(r io.ReaderAt) error {
	if a.size < rkv1TrailerSize {
		return ErrTruncatedTable
	}

	trailer := make([]byte, rkv1TrailerSize)
	if _, err := r.ReadAt(trailer, a.size-rkv1TrailerSize); err != nil {
		return fmt.Errorf("reading trailer: %w", err)
	}
	fileCount := int64(binary.LittleEndian.Uint32(trailer[0:]))
	folderCount := int64(binary.LittleEndian.Uint32(trailer[4:]))

	tableSize := folderCount*rkv1FolderSize + fileCount*rkv1FileRecordSize
	tableStart := a.size - rkv1TrailerSize - tableSize
	if tableStart < 0 {
		return fmt.Errorf("%w: %d files, %d folders in %d bytes", ErrTruncatedTable, fileCount, folderCount, a.size)
	}

	records := make([]byte, fileCount*rkv1FileRecordSize)
	if _, err := r.ReadAt(records, tableStart); err != nil {
		return fmt.Errorf("reading records: %w", err)
	}

	for i := int64(0); i < fileCount; i++ {
		rec := records[i*rkv1FileRecordSize:]
		file := &File{
			Name:   encoding.FixedStringToUTF8(rec[:rkv1NameSize]),
			Folder: binary.LittleEndian.Uint32(rec[32:]),
			Size:   binary.LittleEndian.Uint32(rec[36:]),
			Offset: binary.LittleEndian.Uint32(rec[44:]),
			Date:   binary.LittleEndian.Uint32(rec[52:]),
		}
		a.files[encoding.NormalizeName(file.Name)] = file
	}

	return nil
}

func (a *Archive) readRKV2Table(r io.ReaderAt) error {
	header := make([]byte, rkv2HeaderSize)
	if _, err := r.ReadAt(header, int64(len(rkv2Magic))); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	filesCount := int64(binary.LittleEndian.Uint32(header[0:]))
	infoOffset := int64(binary.LittleEndian.Uint32(header[16:]))

	nameBase := filesCount*rkv2EntrySize + infoOffset
	if nameBase > a.size {
		return fmt.Errorf("%w: %d entries at 0x%x in %d bytes", ErrTruncatedTable, filesCount, infoOffset, a.size)
	}

	entries := make([]byte, filesCount*rkv2EntrySize)
	if _, err := r.ReadAt(entries, infoOffset); err != nil {
		return fmt.Errorf("reading entries: %w", err)
	}

	name := make([]byte, rkv2MaxName)
	for i := int64(0); i < filesCount; i++ {
		rec := entries[i*rkv2EntrySize:]
		nameOffset := int64(binary.LittleEndian.Uint32(rec[0:]))

		n, err := r.ReadAt(name, nameBase+nameOffset)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading name of entry %d: %w", i, err)
		}

		file := &File{
			Name:   encoding.FixedStringToUTF8(name[:n]),
			Size:   binary.LittleEndian.Uint32(rec[8:]),
			Offset: binary.LittleEndian.Uint32(rec[12:]),
			CRC:    binary.LittleEndian.Uint32(rec[16:]),
		}
		a.files[encoding.NormalizeName(file.Name)] = file
	}

	return nil
}

// Path returns the filesystem path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Version returns the detected container layout.
func (a *Archive) Version() Version {
	return a.version
}

// Size returns the archive size in bytes.
func (a *Archive) Size() int64 {
	return a.size
}

// Len returns the number of file entries.
func (a *Archive) Len() int {
	return len(a.files)
}

// File looks up an entry by name, ignoring case.
func (a *Archive) File(name string) (*File, bool) {
	f, ok := a.files[encoding.NormalizeName(name)]
	return f, ok
}

// Contains checks if a file exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.File(name)
	return ok
}

// Read returns exactly Size bytes stored for the named entry.
func (a *Archive) Read(name string) ([]byte, error) {
	entry, ok := a.File(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if entry.Size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}

	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("reopening archive: %w", err)
	}
	defer file.Close()

	data := make([]byte, entry.Size)
	if _, err := file.ReadAt(data, int64(entry.Offset)); err != nil {
		return nil, fmt.Errorf("reading %s (offset 0x%x, size %d): %w", name, entry.Offset, entry.Size, err)
	}
	return data, nil
}

// List returns all file names in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.files))
	for _, f := range a.files {
		result = append(result, f.Name)
	}
	sort.Strings(result)
	return result
}

// ListByExtension returns the sorted names ending in ext, ignoring case.
// ext may be given with or without the leading dot.
func (a *Archive) ListByExtension(ext string) []string {
	suffix := strings.ToLower(ext)
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}

	var result []string
	for key, f := range a.files {
		if strings.HasSuffix(key, suffix) {
			result = append(result, f.Name)
		}
	}
	sort.Strings(result)
	return result
}
