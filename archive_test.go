package wad

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestOpenReaderDirectory(t *testing.T) {
	a := newWadBuilder().
		add("PLAYPAL", make([]byte, 768)).
		add("DEMO1", []byte{1, 2, 3}).
		open(t)

	if a.NumLumps() != 2 {
		t.Fatalf("NumLumps() = %v, want 2", a.NumLumps())
	}
	info, ok := a.Lookup("demo1")
	if !ok {
		t.Fatal("Lookup(demo1) not found")
	}
	if info.Size != 3 {
		t.Errorf("DEMO1 size = %v, want 3", info.Size)
	}
	data, err := a.ReadNamedLump("DEMO1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("ReadNamedLump(DEMO1) = %v, want [1 2 3]", data)
	}
	if a.Header().Magic != magicPWAD {
		t.Errorf("Magic = %v, want %v", a.Header().Magic, magicPWAD)
	}
}

func TestDuplicateNamesLastWins(t *testing.T) {
	a := newWadBuilder().
		add("DUP", []byte{1}).
		add("DUP", []byte{2, 2}).
		open(t)

	i, ok := a.Index(MustName("DUP"))
	if !ok || i != 1 {
		t.Fatalf("Index(DUP) = %v, %v, want 1, true", i, ok)
	}
	data, err := a.ReadNamedLump("DUP")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 {
		t.Errorf("ReadNamedLump(DUP) = %v, want the second entry", data)
	}
}

func TestBadMagic(t *testing.T) {
	b := newWadBuilder()
	b.magic = "JUNK"
	data := b.bytes()
	_, err := OpenReader(bytes.NewReader(data), int64(len(data)), nil)
	if !errors.Is(err, ErrBadMagic) || KindOf(err) != KindCorruptArchive {
		t.Errorf("OpenReader(JUNK) = %v, want %v", err, ErrBadMagic)
	}
}

func TestDirectoryPastEndOfFile(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, binHeader{
		Magic:        [4]byte{'I', 'W', 'A', 'D'},
		NumLumps:     1000,
		InfoTableOfs: 12,
	})
	data := buf.Bytes()
	_, err := OpenReader(bytes.NewReader(data), int64(len(data)), nil)
	if err == nil {
		t.Fatal("OpenReader() with 1000 entries over an empty directory succeeded")
	}
	if k := KindOf(err); k != KindCorruptArchive && k != KindIO {
		t.Errorf("KindOf(%v) = %v, want corrupt archive or i/o error", err, k)
	}
}

func TestTruncatedHeader(t *testing.T) {
	data := []byte("IWAD")
	_, err := OpenReader(bytes.NewReader(data), int64(len(data)), nil)
	if KindOf(err) != KindIO {
		t.Errorf("OpenReader(truncated) = %v, want an i/o error", err)
	}
}

func TestEntryPastEndOfFile(t *testing.T) {
	b := newWadBuilder().add("BIG", []byte{1, 2, 3, 4})
	data := b.bytes()
	// Grow the entry's size in the directory beyond the file.
	dirStart := len(data) - lumpInfoSize
	binary.LittleEndian.PutUint32(data[dirStart+4:], 1<<20)
	_, err := OpenReader(bytes.NewReader(data), int64(len(data)), nil)
	if !errors.Is(err, ErrBadEntry) {
		t.Errorf("OpenReader() = %v, want %v", err, ErrBadEntry)
	}
}

func TestRecordSizeMismatch(t *testing.T) {
	a := newWadBuilder().add("VERTEXES", make([]byte, 7)).open(t)
	i, _ := a.Index(MustName("VERTEXES"))
	_, err := ReadRecords[Vertex](a, i)
	if !errors.Is(err, ErrSizeMismatch) || KindOf(err) != KindCorruptArchive {
		t.Errorf("ReadRecords[Vertex](7 bytes) = %v, want %v", err, ErrSizeMismatch)
	}

	a = newWadBuilder().add("VERTEXES", make([]byte, 8)).open(t)
	vs, err := ReadRecords[Vertex](a, 0)
	if err != nil || len(vs) != 2 {
		t.Errorf("ReadRecords[Vertex](8 bytes) = %v, %v, want 2 vertices", len(vs), err)
	}
}

func TestMissingNamedLump(t *testing.T) {
	a := newWadBuilder().open(t)
	_, err := a.ReadNamedLump("PNAMES")
	if !errors.Is(err, ErrMissingEntry) {
		t.Errorf("ReadNamedLump(PNAMES) = %v, want %v", err, ErrMissingEntry)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wad")
	if err := os.WriteFile(path, newWadBuilder().addLevel(squareLevel()).bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open(%v) error: %v", path, err)
	}
	defer a.Close()
	if a.Path() != path {
		t.Errorf("Path() = %v, want %v", a.Path(), path)
	}
	if names := a.LevelNames(); len(names) != 1 || names[0] != "E1M1" {
		t.Errorf("LevelNames() = %v, want [E1M1]", names)
	}
}

func TestLevelNamesDirectoryOrder(t *testing.T) {
	named := func(name string) *Level {
		l := squareLevel()
		l.Name = name
		return l
	}
	a := newWadBuilder().
		addLevel(named("MAP10")).
		addLevel(named("MAP02")).
		addLevel(named("E1M1")).
		addLevel(named("MAP10")).
		open(t)
	names := a.LevelNames()
	want := []string{"MAP10", "MAP02", "E1M1"}
	if len(names) != len(want) {
		t.Fatalf("LevelNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("LevelNames()[%v] = %v, want %v", i, names[i], want[i])
		}
	}
	// The second MAP10 replaces the first.
	if _, err := a.ReadLevel("MAP10"); err != nil {
		t.Errorf("ReadLevel(MAP10) error: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.wad")
	_, err := Open(path, "")
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindIO || e.Path != path {
		t.Errorf("Open(missing) = %v, want an i/o error carrying the path", err)
	}
}
