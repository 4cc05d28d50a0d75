package stash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Format frames records on their way to and from the journal file. The
// default binary format is CRC-protected; alternative formats only need to
// round-trip (key, value, tombstone) triples.
type Format interface {
	// WriteHeader emits the file header on a fresh journal.
	WriteHeader(w io.Writer) (int, error)
	// ReadHeader consumes and validates the file header.
	ReadHeader(r io.Reader) (int, error)
	// WriteRecord frames one record. A tombstone record has no value.
	WriteRecord(w io.Writer, key, value []byte, tombstone bool) (int, error)
	// ReadRecord decodes the next record. It returns io.EOF at a clean end
	// of journal and ErrCorrupt for anything torn or mangled.
	ReadRecord(r io.Reader) (key, value []byte, tombstone bool, err error)
}

const (
	// formatMagic identifies a stash journal file.
	formatMagic = "ABRACADABRA"
	// formatVersion is bumped on any incompatible layout change.
	formatVersion uint16 = 420

	// tombstone records carry this sentinel in place of a value length
	tombstoneSentinel uint32 = 1<<32 - 1

	headerSize = len(formatMagic) + 2
)

var (
	// ErrVersionMismatch is returned when a journal was written by an
	// incompatible format version.
	ErrVersionMismatch = errors.New("stash: journal format version mismatch")

	// ErrCorrupt is returned when the journal fails CRC or structural
	// validation. A corrupt journal cannot be loaded.
	ErrCorrupt = errors.New("stash: journal corrupted")

	// ErrKeyTooLarge is returned when a key exceeds the format's length
	// field.
	ErrKeyTooLarge = errors.New("stash: key too large for record format")

	// ErrValueTooLarge is returned when a value length collides with the
	// tombstone sentinel or exceeds the length field.
	ErrValueTooLarge = errors.New("stash: value too large for record format")
)

// binaryFormat is the default journal layout:
//
//	header: 11-byte magic "ABRACADABRA", u16 BE version
//	record: u32 BE key length, u32 BE value length (sentinel 2^32-1 marks a
//	        tombstone with no value payload), key bytes, value bytes,
//	        u32 BE CRC32 over lengths+key+value
type binaryFormat struct{}

// NewBinaryFormat returns the default CRC-protected binary Format.
func NewBinaryFormat() Format {
	return binaryFormat{}
}

func (binaryFormat) WriteHeader(w io.Writer) (int, error) {
	buf := make([]byte, 0, headerSize)
	buf = append(buf, formatMagic...)
	buf = binary.BigEndian.AppendUint16(buf, formatVersion)
	return w.Write(buf)
}

func (binaryFormat) ReadHeader(r io.Reader) (int, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return n, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if string(buf[:len(formatMagic)]) != formatMagic {
		return n, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if version := binary.BigEndian.Uint16(buf[len(formatMagic):]); version != formatVersion {
		return n, fmt.Errorf("%w: journal version %d, supported %d",
			ErrVersionMismatch, version, formatVersion)
	}
	return n, nil
}

func (binaryFormat) WriteRecord(w io.Writer, key, value []byte, tombstone bool) (int, error) {
	if uint64(len(key)) > uint64(tombstoneSentinel) {
		return 0, ErrKeyTooLarge
	}
	valueLen := tombstoneSentinel
	if !tombstone {
		if uint64(len(value)) >= uint64(tombstoneSentinel) {
			return 0, ErrValueTooLarge
		}
		valueLen = uint32(len(value))
	} else {
		value = nil
	}

	buf := make([]byte, 0, 12+len(key)+len(value))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(key)))
	buf = binary.BigEndian.AppendUint32(buf, valueLen)
	buf = append(buf, key...)
	buf = append(buf, value...)
	buf = binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	return w.Write(buf)
}

func (binaryFormat) ReadRecord(r io.Reader) ([]byte, []byte, bool, error) {
	lengths := make([]byte, 8)
	if _, err := io.ReadFull(r, lengths); err != nil {
		if err == io.EOF {
			return nil, nil, false, io.EOF
		}
		return nil, nil, false, fmt.Errorf("%w: torn record lengths: %v", ErrCorrupt, err)
	}

	keyLen := binary.BigEndian.Uint32(lengths)
	valueLen := binary.BigEndian.Uint32(lengths[4:])
	tombstone := valueLen == tombstoneSentinel

	payloadLen := int(keyLen)
	if !tombstone {
		payloadLen += int(valueLen)
	}

	payload := make([]byte, payloadLen+4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, false, fmt.Errorf("%w: torn record payload: %v", ErrCorrupt, err)
	}

	crc := crc32.NewIEEE()
	crc.Write(lengths)
	crc.Write(payload[:payloadLen])
	if stored := binary.BigEndian.Uint32(payload[payloadLen:]); stored != crc.Sum32() {
		return nil, nil, false, fmt.Errorf("%w: record checksum mismatch", ErrCorrupt)
	}

	key := payload[:keyLen:keyLen]
	var value []byte
	if !tombstone {
		value = payload[keyLen:payloadLen:payloadLen]
	}
	return key, value, tombstone, nil
}
