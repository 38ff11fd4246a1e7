// Package serde implements the versioned on-wire/state encoding for splits
// and enumerator state snapshots.
package serde

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// CurrentVersion is the version written by SerializeSplit.
const CurrentVersion = 2

// CompatibleVersions lists every version DeserializeSplit accepts.
var CompatibleVersions = []int{0, 1, 2}

func isCompatible(v int) bool {
	for _, c := range CompatibleVersions {
		if c == v {
			return true
		}
	}
	return false
}

// SerializeSplit encodes split using the given wire version. Version 0
// omits isFinished and childSplits, and version 1 omits childSplits;
// this implementation always emits the current-shape parent-id field (a
// single optional string with a legacy-compatibility marker byte for
// v<=1 — see DESIGN.md Open Question #1) so that
// serialize(v)∘deserialize(v) round-trips for every compatible version.
func SerializeSplit(s types.Split, version int) ([]byte, error) {
	if !isCompatible(version) {
		return nil, versionMismatch(version)
	}

	var buf bytes.Buffer
	writeUTF(&buf, s.StreamARN)
	writeUTF(&buf, s.ShardID)
	writeUTF(&buf, s.StartingPosition.Kind.String())

	switch s.StartingPosition.Kind {
	case types.AfterSequenceNumber:
		writeBool(&buf, true)
		writeBool(&buf, true) // isString
		writeUTF(&buf, s.StartingPosition.Sequence)
	case types.AtTimestamp:
		writeBool(&buf, true)
		writeBool(&buf, false) // isString
		writeUTF(&buf, strconv.FormatInt(s.StartingPosition.Timestamp.UnixMilli(), 10))
	default:
		writeBool(&buf, false)
	}

	writeParentShardID(&buf, s.ParentShardID, version)

	if version >= 1 {
		writeBool(&buf, s.IsFinished)
	}
	if version >= 2 {
		writeI32(&buf, int32(len(s.ChildSplits)))
		for _, c := range s.ChildSplits {
			writeUTF(&buf, c.ShardID)
			writeOptionalUTF(&buf, c.ParentShardID)
			writeUTF(&buf, c.SequenceNumberRange.StartingSequenceNumber)
			writeOptionalUTF(&buf, c.SequenceNumberRange.EndingSequenceNumber)
		}
	}

	return buf.Bytes(), nil
}

// legacyShapeMarker disambiguates the current single-optional-string parent
// field (0) from the older set-of-parent-ids shape (1) that an earlier
// SplitTracker variant used, for versions that predate the current
// single-parent data model (v<=1). v2 never carries the marker: by the
// time v2 shipped the legacy shape was retired.
const (
	legacyShapeSingle byte = 0
	legacyShapeList   byte = 1
)

func writeParentShardID(buf *bytes.Buffer, parent *string, version int) {
	if version <= 1 {
		buf.WriteByte(legacyShapeSingle)
	}
	writeOptionalUTF(buf, parent)
}

func readParentShardID(r io.Reader, version int) (*string, error) {
	if version <= 1 {
		var marker [1]byte
		if _, err := io.ReadFull(r, marker[:]); err != nil {
			return nil, fmt.Errorf("read parent shape marker: %w", err)
		}
		if marker[0] == legacyShapeList {
			present, err := readBool(r)
			if err != nil || !present {
				return nil, err
			}
			count, err := readI32(r)
			if err != nil {
				return nil, err
			}
			var first *string
			for i := int32(0); i < count; i++ {
				s, err := readUTF(r)
				if err != nil {
					return nil, err
				}
				if i == 0 {
					first = &s
				}
			}
			return first, nil
		}
	}
	return readOptionalUTF(r)
}

// DeserializeSplit decodes bytes written by SerializeSplit (or, for v<=1,
// by the legacy set-of-parent-ids shape) at the given version. Missing
// fields for older versions default to: isFinished=false,
// childSplits=[].
func DeserializeSplit(data []byte, version int) (types.Split, error) {
	if !isCompatible(version) {
		return types.Split{}, versionMismatch(version)
	}

	r := bytes.NewReader(data)
	var s types.Split
	var err error

	if s.StreamARN, err = readUTF(r); err != nil {
		return types.Split{}, err
	}
	if s.ShardID, err = readUTF(r); err != nil {
		return types.Split{}, err
	}

	kindName, err := readUTF(r)
	if err != nil {
		return types.Split{}, err
	}
	present, err := readBool(r)
	if err != nil {
		return types.Split{}, err
	}

	switch kindName {
	case types.AfterSequenceNumber.String():
		if !present {
			return types.Split{}, fmt.Errorf("serde: AFTER_SEQUENCE_NUMBER split missing starting marker")
		}
		if _, err := readBool(r); err != nil { // isString
			return types.Split{}, err
		}
		seq, err := readUTF(r)
		if err != nil {
			return types.Split{}, err
		}
		s.StartingPosition = types.NewAfterSequenceNumber(seq)
	case types.AtTimestamp.String():
		if !present {
			return types.Split{}, fmt.Errorf("serde: AT_TIMESTAMP split missing starting marker")
		}
		if _, err := readBool(r); err != nil { // isString
			return types.Split{}, err
		}
		raw, err := readUTF(r)
		if err != nil {
			return types.Split{}, err
		}
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.Split{}, fmt.Errorf("serde: bad AT_TIMESTAMP payload: %w", err)
		}
		s.StartingPosition = types.NewAtTimestamp(timeFromMillis(millis))
	case types.Latest.String():
		s.StartingPosition = types.NewLatest()
	default:
		s.StartingPosition = types.NewTrimHorizon()
	}

	if s.ParentShardID, err = readParentShardID(r, version); err != nil {
		return types.Split{}, err
	}

	if version >= 1 {
		if s.IsFinished, err = readBool(r); err != nil {
			return types.Split{}, err
		}
	}

	if version >= 2 {
		count, err := readI32(r)
		if err != nil {
			return types.Split{}, err
		}
		s.ChildSplits = make([]types.ChildSplit, 0, count)
		for i := int32(0); i < count; i++ {
			var c types.ChildSplit
			if c.ShardID, err = readUTF(r); err != nil {
				return types.Split{}, err
			}
			if c.ParentShardID, err = readOptionalUTF(r); err != nil {
				return types.Split{}, err
			}
			if c.SequenceNumberRange.StartingSequenceNumber, err = readUTF(r); err != nil {
				return types.Split{}, err
			}
			if c.SequenceNumberRange.EndingSequenceNumber, err = readOptionalUTF(r); err != nil {
				return types.Split{}, err
			}
			s.ChildSplits = append(s.ChildSplits, c)
		}
	}

	return s, nil
}
