package serde

import (
	"bytes"
	"io"
	"time"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// EnumeratorState is the checkpointed shape of the enumerator: every split
// known at the time of the snapshot, plus the wall-clock moment the
// enumerator was first constructed, which is kept across restores and
// anchors Latest-mode starting positions.
type EnumeratorState struct {
	Splits         []types.Split
	StartTimestamp time.Time
}

// SerializeEnumeratorState encodes state as a split count, each split
// prefixed by its own byte length (so individual entries can be skipped by
// a forwards-compatible reader), followed by StartTimestamp as epoch
// millis.
func SerializeEnumeratorState(state EnumeratorState, version int) ([]byte, error) {
	if !isCompatible(version) {
		return nil, versionMismatch(version)
	}

	var buf bytes.Buffer
	writeI32(&buf, int32(len(state.Splits)))
	for _, s := range state.Splits {
		encoded, err := SerializeSplit(s, version)
		if err != nil {
			return nil, err
		}
		writeI32(&buf, int32(len(encoded)))
		buf.Write(encoded)
	}
	writeI64(&buf, state.StartTimestamp.UnixMilli())

	return buf.Bytes(), nil
}

// DeserializeEnumeratorState is the inverse of SerializeEnumeratorState.
func DeserializeEnumeratorState(data []byte, version int) (EnumeratorState, error) {
	if !isCompatible(version) {
		return EnumeratorState{}, versionMismatch(version)
	}

	r := bytes.NewReader(data)
	count, err := readI32(r)
	if err != nil {
		return EnumeratorState{}, err
	}

	splits := make([]types.Split, 0, count)
	for i := int32(0); i < count; i++ {
		n, err := readI32(r)
		if err != nil {
			return EnumeratorState{}, err
		}
		entry := make([]byte, n)
		if _, err := io.ReadFull(r, entry); err != nil {
			return EnumeratorState{}, err
		}
		split, err := DeserializeSplit(entry, version)
		if err != nil {
			return EnumeratorState{}, err
		}
		splits = append(splits, split)
	}

	millis, err := readI64(r)
	if err != nil {
		return EnumeratorState{}, err
	}

	return EnumeratorState{
		Splits:         splits,
		StartTimestamp: timeFromMillis(millis),
	}, nil
}
