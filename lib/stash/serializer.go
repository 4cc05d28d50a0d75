package stash

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
)

// Serializer converts in-memory values to and from their journaled
// representation. Keys always travel as their raw bytes; only the value
// codec is pluggable.
type Serializer interface {
	// Serialize encodes a value for the journal.
	Serialize(value []byte) ([]byte, error)
	// Deserialize decodes a journaled value.
	Deserialize(b []byte) ([]byte, error)
}

// NewRawSerializer returns the default pass-through codec: values hit the
// journal exactly as stored in the table.
func NewRawSerializer() Serializer {
	return rawSerializerImpl{}
}

type rawSerializerImpl struct{}

func (rawSerializerImpl) Serialize(value []byte) ([]byte, error) { return value, nil }

func (rawSerializerImpl) Deserialize(b []byte) ([]byte, error) { return b, nil }

// NewGOBSerializer returns a codec using Go's binary gob format.
func NewGOBSerializer() Serializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

func (gobSerializerImpl) Serialize(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(b []byte) ([]byte, error) {
	var value []byte
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// NewJSONSerializer returns a codec using json encoding. Useful when the
// journal should be greppable at the cost of size.
func NewJSONSerializer() Serializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

func (jsonSerializerImpl) Serialize(value []byte) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonSerializerImpl) Deserialize(b []byte) ([]byte, error) {
	var value []byte
	if err := json.Unmarshal(b, &value); err != nil {
		return nil, err
	}
	return value, nil
}
