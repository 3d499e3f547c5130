package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

const (
	typeEntry         = "type"
	typeRecordVersion = 1
)

// typeRecord is the JSON body of the "type" entry: the element type plus the
// archive settings that affect file layout.
type typeRecord struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Shape     []int  `json:"shape,omitempty"`
	Compress  bool   `json:"compress"`
	Method    uint16 `json:"method"`
	LargeFile bool   `json:"large_file"`
}

func newTypeRecord(elem ElementType, method Method, largeFile bool) typeRecord {
	return typeRecord{
		Version:   typeRecordVersion,
		Name:      elem.Name,
		Kind:      elem.Kind.String(),
		Shape:     elem.Shape,
		Compress:  method != MethodStore,
		Method:    uint16(method),
		LargeFile: largeFile,
	}
}

func (r typeRecord) elementType() (ElementType, error) {
	kind, err := value.ParseKind(r.Kind)
	if err != nil {
		return ElementType{}, fmt.Errorf("decode type record: %w", err)
	}
	return ElementType{Name: r.Name, Kind: kind, Shape: r.Shape}, nil
}

func writeTypeRecord(w io.Writer, r typeRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode type record: %w", err)
	}
	return nil
}

func readTypeRecord(r io.Reader) (typeRecord, error) {
	var have typeRecord
	if err := json.NewDecoder(r).Decode(&have); err != nil {
		return typeRecord{}, fmt.Errorf("decode type record: %w", err)
	}
	if have.Version > typeRecordVersion {
		return typeRecord{}, fmt.Errorf("decode type record: unsupported version %d", have.Version)
	}
	return have, nil
}
