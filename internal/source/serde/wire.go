package serde

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// timeFromMillis converts a Unix-epoch millisecond count, as carried on the
// wire, back into a time.Time in UTC.
func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// writeUTF writes a length-prefixed UTF-8 string: a big-endian uint32 byte
// length followed by the raw bytes.
func writeUTF(buf *bytes.Buffer, s string) {
	b := []byte(s)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readUTF(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read string body: %w", err)
	}
	return string(b), nil
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, fmt.Errorf("read bool: %w", err)
	}
	return b[0] != 0, nil
}

func writeI32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func readI32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read int32: %w", err)
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readI64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read int64: %w", err)
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func writeOptionalUTF(buf *bytes.Buffer, s *string) {
	writeBool(buf, s != nil)
	if s != nil {
		writeUTF(buf, *s)
	}
}

func readOptionalUTF(r io.Reader) (*string, error) {
	present, err := readBool(r)
	if err != nil || !present {
		return nil, err
	}
	s, err := readUTF(r)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
