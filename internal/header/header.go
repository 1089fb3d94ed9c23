// Package header implements the block header external-collaborator
// contract from spec §3/§6: the fixed little-endian wire layout
// (version, prev_hash, merkle_root, time, difficulty, nonce, shift, adder)
// and the sha256d(header_core) -> hash operation the core depends on.
//
// Grounded on other_examples/1238d8fb_smythg4-go-bitcoin's block.go (the
// bitsToTarget/TargetToBits little-endian field layout and double-SHA256
// shape) and on client/main.go's use of encoding/hex for wire (de)serialization.
package header

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Header is the engine-visible view of a pool work unit. Height is a
// supplemental field (not in the wire format) carried for operator-facing
// logging only; see SPEC_FULL.md's supplemented fields.
type Header struct {
	Version        uint32
	HashPrevBlock  [32]byte
	HashMerkleRoot [32]byte
	Time           uint32
	Difficulty     uint64 // FP48-encoded
	Nonce          uint32
	Shift          uint16
	Adder          []byte // variable-length, little-endian magnitude

	Height uint64
}

// Clone returns a deep copy, safe for a worker to mutate independently of
// the shared orchestrator-owned Header.
func (h *Header) Clone() *Header {
	c := *h
	c.Adder = append([]byte(nil), h.Adder...)
	return &c
}

// Core encodes the fixed-size portion of the header used as sha256d input:
// version, prev_hash, merkle_root, time, difficulty, nonce, shift. Adder is
// excluded — it is reconstructed per-PoW, not part of the hashed anchor.
func (h *Header) Core() []byte {
	buf := make([]byte, 0, 4+32+32+4+8+4+2)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], h.Version)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, h.HashPrevBlock[:]...)
	buf = append(buf, h.HashMerkleRoot[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], h.Time)
	buf = append(buf, tmp4[:]...)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], h.Difficulty)
	buf = append(buf, tmp8[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], h.Nonce)
	buf = append(buf, tmp4[:]...)
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], h.Shift)
	buf = append(buf, tmp2[:]...)
	return buf
}

// Sha256d returns the double-SHA256 hash of the header's core bytes.
func Sha256d(core []byte) [32]byte {
	first := sha256.Sum256(core)
	return sha256.Sum256(first[:])
}

// Hash is a convenience wrapper: Sha256d(h.Core()).
func (h *Header) Hash() [32]byte {
	return Sha256d(h.Core())
}

// Bytes serializes the full wire form: core fields plus the variable-length
// adder, all little-endian, matching spec §6's getwork contract.
func (h *Header) Bytes() []byte {
	buf := bytes.NewBuffer(h.Core())
	buf.Write(h.Adder)
	return buf.Bytes()
}

// Hex returns the lowercase hex encoding of Bytes().
func (h *Header) Hex() string {
	return hex.EncodeToString(h.Bytes())
}

// FromHex parses a lowercase hex wire form back into a Header. Round trip
// with Hex/Bytes is identity (spec §8's testable property).
func FromHex(s string) (*Header, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "header: invalid hex")
	}
	return FromBytes(raw)
}

const fixedLen = 4 + 32 + 32 + 4 + 8 + 4 + 2

// FromBytes parses the fixed fields plus a trailing variable-length adder.
func FromBytes(raw []byte) (*Header, error) {
	if len(raw) < fixedLen {
		return nil, errors.Errorf("header: too short: got %d bytes, want at least %d", len(raw), fixedLen)
	}
	h := &Header{}
	r := bytes.NewReader(raw)
	h.Version = readUint32(r)
	readInto(r, h.HashPrevBlock[:])
	readInto(r, h.HashMerkleRoot[:])
	h.Time = readUint32(r)
	h.Difficulty = readUint64(r)
	h.Nonce = readUint32(r)
	h.Shift = readUint16(r)
	h.Adder = make([]byte, r.Len())
	readInto(r, h.Adder)
	return h, nil
}

func readInto(r *bytes.Reader, dst []byte) {
	r.Read(dst)
}

func readUint32(r *bytes.Reader) uint32 {
	var b [4]byte
	r.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func readUint64(r *bytes.Reader) uint64 {
	var b [8]byte
	r.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func readUint16(r *bytes.Reader) uint16 {
	var b [2]byte
	r.Read(b[:])
	return binary.LittleEndian.Uint16(b[:])
}
