// Package image persists program grids as compact, content-addressed
// images. An image is a canonical CBOR record compressed with zstd and
// carrying a blake3 hash of the grid, so a grid captured after a
// self-modifying run can be reloaded and verified later.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"

	"github.com/chazu/funge/vm"
)

// Version is the current image format version.
const Version uint8 = 1

// Extension is the conventional file extension for images.
const Extension = ".fimg"

// maxDecodedSize bounds decompression of untrusted images.
const maxDecodedSize = 64 << 20

var (
	// ErrCorrupt is returned when an image cannot be decoded or its hash
	// does not match its contents.
	ErrCorrupt = errors.New("corrupt image")

	// ErrVersion is returned for images written by an unknown format version.
	ErrVersion = errors.New("unsupported image version")
)

// zstdMagic is the frame header every image starts with.
const zstdMagic = "\x28\xB5\x2F\xFD"

// MagicSize is the number of leading bytes IsImage needs to see.
const MagicSize = len(zstdMagic)

// record is the on-disk CBOR layout.
type record struct {
	Version uint8    `cbor:"1,keyasint"`
	Width   int      `cbor:"2,keyasint"`
	Height  int      `cbor:"3,keyasint"`
	Rows    [][]byte `cbor:"4,keyasint"`
	Hash    [32]byte `cbor:"5,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Hash returns the blake3 content hash of a grid: its dimensions followed
// by every row.
func Hash(g *vm.Grid) [32]byte {
	return hashRows(g.Width(), g.Height(), g.Rows())
}

func hashRows(width, height int, rows [][]byte) [32]byte {
	h := blake3.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(width))
	binary.BigEndian.PutUint32(dims[4:8], uint32(height))
	h.Write(dims[:])
	for _, row := range rows {
		h.Write(row)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// ID returns the base58 form of a grid's hash, used to identify programs
// in logs and run history.
func ID(g *vm.Grid) string {
	sum := Hash(g)
	return base58.Encode(sum[:])
}

// Marshal encodes a grid into image bytes.
func Marshal(g *vm.Grid) ([]byte, error) {
	rec := record{
		Version: Version,
		Width:   g.Width(),
		Height:  g.Height(),
		Rows:    g.Rows(),
		Hash:    Hash(g),
	}
	data, err := cborEncMode.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	return compress(data)
}

// Unmarshal decodes image bytes into a grid, verifying the version and
// content hash.
func Unmarshal(data []byte) (*vm.Grid, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var rec record
	if err := cbor.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, rec.Version)
	}
	if len(rec.Rows) != rec.Height {
		return nil, fmt.Errorf("%w: %d rows, header says %d", ErrCorrupt, len(rec.Rows), rec.Height)
	}
	for y, row := range rec.Rows {
		if len(row) != rec.Width {
			return nil, fmt.Errorf("%w: row %d has %d cells, header says %d", ErrCorrupt, y, len(row), rec.Width)
		}
	}
	if hashRows(rec.Width, rec.Height, rec.Rows) != rec.Hash {
		return nil, fmt.Errorf("%w: hash mismatch", ErrCorrupt)
	}

	g, err := vm.FromRows(rec.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return g, nil
}

// Encode writes the image of g to w.
func Encode(w io.Writer, g *vm.Grid) error {
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode reads an image from r.
func Decode(r io.Reader) (*vm.Grid, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("image: read: %w", err)
	}
	return Unmarshal(data)
}

// IsImage reports whether data looks like an image rather than program
// source.
func IsImage(data []byte) bool {
	return bytes.HasPrefix(data, []byte(zstdMagic))
}

func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
