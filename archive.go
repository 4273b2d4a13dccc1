// Package wad provides access to Doom's data archives also known as WAD files, and turns
// their levels and graphics into renderer agnostic geometry, texture atlases and lighting.
// The file format is documented in The Unofficial DOOM Specs:
// http://www.gamers.org/dhs/helpdocs/dmsp1666.html
package wad

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Archive is Doom's data archive that contains graphics, sounds, and level data. The data is
// organized as named lumps. An Archive is immutable once opened and may be read from several
// goroutines at once.
type Archive struct {
	path      string
	r         io.ReaderAt
	closer    io.Closer
	size      int64
	header    Header
	lumpInfos []LumpInfo
	lumpNums  map[LumpName]int
	levels    map[string]int
	levelList []string // directory order
	meta      *Metadata
}

type binHeader struct {
	Magic        [4]byte
	NumLumps     int32
	InfoTableOfs int32
}

type Header struct {
	Magic        string
	NumLumps     int
	InfoTableOfs int64
}

type binLumpInfo struct {
	Filepos int32
	Size    int32
	Name    [8]byte
}

// LumpInfo is one directory entry.
type LumpInfo struct {
	Name    LumpName
	Filepos int64
	Size    int64
}

const (
	lumpInfoSize  = 16
	magicIWAD     = "IWAD"
	magicPWAD     = "PWAD"
	levelLumpName = "THINGS"
)

// Open reads the WAD directory from wadPath and the companion metadata from metaPath. An
// empty metaPath selects the built in Doom metadata.
func Open(wadPath, metaPath string) (*Archive, error) {
	logger.Infof("Opening %v", wadPath)

	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return nil, err
	}

	// Open file
	file, err := os.Open(wadPath)
	if err != nil {
		return nil, withPath(ioError(err, "open"), wadPath)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, withPath(ioError(err, "stat"), wadPath)
	}

	a, err := OpenReader(file, info.Size(), meta)
	if err != nil {
		file.Close()
		return nil, withPath(err, wadPath)
	}
	a.path = wadPath
	a.closer = file
	return a, nil
}

// OpenReader reads a WAD directory from r, which holds size bytes. A nil meta selects the
// built in Doom metadata.
func OpenReader(r io.ReaderAt, size int64, meta *Metadata) (*Archive, error) {
	if meta == nil {
		var err error
		if meta, err = DefaultMetadata(); err != nil {
			return nil, err
		}
	}
	a := &Archive{r: r, size: size, meta: meta}

	// Read header
	var bh binHeader
	if err := binary.Read(io.NewSectionReader(r, 0, size), binary.LittleEndian, &bh); err != nil {
		return nil, ioError(err, "read header")
	}
	magic := string(bh.Magic[:])
	if magic != magicIWAD && magic != magicPWAD {
		return nil, corrupt(ErrBadMagic, "%q", bh.Magic[:])
	}
	a.header = Header{Magic: magic, NumLumps: int(bh.NumLumps), InfoTableOfs: int64(bh.InfoTableOfs)}

	// Read info tables
	if err := a.readInfoTables(); err != nil {
		return nil, err
	}
	logger.Infof("Read %v lumps, %v levels", len(a.lumpInfos), len(a.levels))
	return a, nil
}

func (a *Archive) readInfoTables() error {
	h := a.header
	if h.NumLumps < 0 || h.InfoTableOfs < 0 {
		return corrupt(ErrBadEntry, "directory of %v entries at %v", h.NumLumps, h.InfoTableOfs)
	}
	end := h.InfoTableOfs + int64(h.NumLumps)*lumpInfoSize
	if end > a.size {
		return corrupt(ErrBadEntry, "directory of %v entries at %v exceeds file size %v",
			h.NumLumps, h.InfoTableOfs, a.size)
	}

	binInfos := make([]binLumpInfo, h.NumLumps)
	section := io.NewSectionReader(a.r, h.InfoTableOfs, end-h.InfoTableOfs)
	if err := binary.Read(section, binary.LittleEndian, binInfos); err != nil {
		return ioError(err, "read directory")
	}

	lumpNums := make(map[LumpName]int, len(binInfos))
	levels := map[string]int{}
	var levelList []string
	lumpInfos := make([]LumpInfo, len(binInfos))
	for i, bi := range binInfos {
		name, err := DecodeName(bi.Name)
		if err != nil {
			return corrupt(err, "directory entry %v", i)
		}
		info := LumpInfo{Name: name, Filepos: int64(bi.Filepos), Size: int64(bi.Size)}
		if info.Size < 0 || info.Size > 0 && (info.Filepos < 0 || info.Filepos+info.Size > a.size) {
			return corrupt(ErrBadEntry, "entry %v %v at %v size %v", i, name, info.Filepos, info.Size)
		}
		if name.String() == levelLumpName && i > 0 {
			level := lumpInfos[i-1].Name.String()
			if _, ok := levels[level]; !ok {
				levelList = append(levelList, level)
			}
			levels[level] = i - 1
		}

		// Later entries replace earlier ones of the same name, as when a PWAD is merged.
		lumpNums[name] = i
		lumpInfos[i] = info
	}
	a.lumpInfos = lumpInfos
	a.lumpNums = lumpNums
	a.levels = levels
	a.levelList = levelList
	return nil
}

// Close releases the underlying file, if the archive opened one.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func (a *Archive) Path() string { return a.path }

func (a *Archive) Header() Header { return a.header }

func (a *Archive) Metadata() *Metadata { return a.meta }

func (a *Archive) NumLumps() int { return len(a.lumpInfos) }

// LumpInfo returns directory entry i. i must be in range.
func (a *Archive) LumpInfo(i int) LumpInfo { return a.lumpInfos[i] }

// Index returns the directory index of the lump called name.
func (a *Archive) Index(name LumpName) (int, bool) {
	i, ok := a.lumpNums[name]
	return i, ok
}

// Lookup finds a lump by its string name. Invalid names are simply not found.
func (a *Archive) Lookup(name string) (LumpInfo, bool) {
	n, err := EncodeName(name)
	if err != nil {
		return LumpInfo{}, false
	}
	i, ok := a.lumpNums[n]
	if !ok {
		return LumpInfo{}, false
	}
	return a.lumpInfos[i], true
}

// LevelNames returns the level names found in the WAD archive, in directory order. A
// level defined twice is listed once, at its first position.
func (a *Archive) LevelNames() []string {
	return append([]string(nil), a.levelList...)
}

// ReadLump reads the whole of lump i.
func (a *Archive) ReadLump(i int) ([]byte, error) {
	info := a.lumpInfos[i]
	lump := make([]byte, info.Size)
	if _, err := io.ReadFull(io.NewSectionReader(a.r, info.Filepos, info.Size), lump); err != nil {
		return nil, withName(ioError(err, "read lump %v", i), info.Name.String())
	}
	return lump, nil
}

// ReadNamedLump reads the lump called name. A missing lump is a corrupt archive.
func (a *Archive) ReadNamedLump(name string) ([]byte, error) {
	n, err := EncodeName(name)
	if err != nil {
		return nil, corrupt(err, "lump name")
	}
	i, ok := a.lumpNums[n]
	if !ok {
		return nil, &Error{Kind: KindCorruptArchive, Name: name, Err: ErrMissingEntry}
	}
	return a.ReadLump(i)
}

// ReadRecords decodes lump i as a tightly packed little endian array of T, which must be a
// fixed size type.
func ReadRecords[T any](a *Archive, i int) ([]T, error) {
	info := a.lumpInfos[i]
	count, err := recordCount[T](info.Size)
	if err != nil {
		return nil, withName(err, info.Name.String())
	}
	records := make([]T, count)
	section := io.NewSectionReader(a.r, info.Filepos, info.Size)
	if err := binary.Read(section, binary.LittleEndian, records); err != nil {
		return nil, withName(ioError(err, "read lump %v", i), info.Name.String())
	}
	return records, nil
}

func recordCount[T any](size int64) (int, error) {
	var zero T
	recSize := int64(binary.Size(zero))
	if recSize <= 0 {
		return 0, errors.Errorf("%T is not a fixed size record", zero)
	}
	if size%recSize != 0 {
		return 0, corrupt(ErrSizeMismatch, "%v bytes for %v byte records", size, recSize)
	}
	return int(size / recSize), nil
}

// namespace returns the lumps between a start and end marker pair, such as F_START and
// F_END. ok is false if either marker is missing.
func (a *Archive) namespace(start, end string) (first, last int, ok bool) {
	s, ok1 := a.Lookup(start)
	e, ok2 := a.Lookup(end)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	first, last = a.lumpNums[s.Name], a.lumpNums[e.Name]
	if first > last {
		return 0, 0, false
	}
	return first + 1, last, true
}
