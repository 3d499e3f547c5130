package value

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoBinaryCodec means an opaque measurement cannot be archived in
	// binary form; callers fall back to MarshalText.
	ErrNoBinaryCodec = errors.New("value: measurement has no binary codec")
	// ErrNoTextCodec means an opaque measurement has no textual form either.
	ErrNoTextCodec = errors.New("value: measurement has no text codec")
	// ErrCorrupt is returned for payloads that fail the integrity check.
	ErrCorrupt = errors.New("value: corrupted payload")
)

// Resolver returns an empty measurement of the named type to decode into.
type Resolver func(typeName string) (Measurement, error)

// binary layout (little-endian)
// 0..3  : magic "EVB1"
// 4..7  : crc32 (IEEE) of the body
// 8..   : body, one tagged node
var binaryMagic = [4]byte{'E', 'V', 'B', '1'}

const binaryHeader = 8

// MarshalBinary encodes v into the archive binary format.
func MarshalBinary(v Value) ([]byte, error) {
	body, err := appendNode(nil, v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, binaryHeader, binaryHeader+len(body))
	copy(out[0:4], binaryMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

func appendNode(buf []byte, v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("value: cannot encode nil value")
	}
	buf = append(buf, byte(v.Kind()))
	switch x := v.(type) {
	case Scalar:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(x)))
	case Array:
		buf = binary.AppendUvarint(buf, uint64(len(x.Shape)))
		for _, d := range x.Shape {
			buf = binary.AppendUvarint(buf, uint64(d))
		}
		buf = binary.AppendUvarint(buf, uint64(len(x.Data)))
		for _, f := range x.Data {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
	case Sequence:
		buf = binary.AppendUvarint(buf, uint64(len(x)))
		for _, e := range x {
			var err error
			if buf, err = appendNode(buf, e); err != nil {
				return nil, err
			}
		}
	case Mapping:
		buf = binary.AppendUvarint(buf, uint64(len(x)))
		for _, k := range x.Keys() {
			buf = appendString(buf, k)
			var err error
			if buf, err = appendNode(buf, x[k]); err != nil {
				return nil, err
			}
		}
	case Opaque:
		m, ok := x.M.(encoding.BinaryMarshaler)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoBinaryCodec, x.TypeName())
		}
		p, err := m.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("value: marshal %s: %w", x.TypeName(), err)
		}
		buf = appendString(buf, x.M.TypeName())
		buf = binary.AppendUvarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	default:
		return nil, fmt.Errorf("value: cannot encode %T", v)
	}
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// UnmarshalBinary decodes data produced by MarshalBinary. resolve may be nil
// when no opaque values are expected.
func UnmarshalBinary(data []byte, resolve Resolver) (Value, error) {
	if len(data) < binaryHeader || [4]byte(data[0:4]) != binaryMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	body := data[binaryHeader:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(data[4:8]) {
		return nil, fmt.Errorf("%w: CRC mismatch", ErrCorrupt)
	}
	d := &decoder{buf: body, resolve: resolve}
	v, err := d.node()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(d.buf)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf     []byte
	pos     int
	resolve Resolver
}

func (d *decoder) truncated() error {
	return fmt.Errorf("%w: truncated at byte %d", ErrCorrupt, d.pos)
}

func (d *decoder) uvarint() (uint64, error) {
	x, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, d.truncated()
	}
	d.pos += n
	return x, nil
}

func (d *decoder) length() (int, error) {
	n, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.buf)) {
		return 0, fmt.Errorf("%w: length %d exceeds payload", ErrCorrupt, n)
	}
	return int(n), nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, d.truncated()
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) float() (float64, error) {
	b, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.length()
	if err != nil {
		return "", err
	}
	b, err := d.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) node() (Value, error) {
	tag, err := d.bytes(1)
	if err != nil {
		return nil, err
	}
	switch Kind(tag[0]) {
	case KindScalar:
		f, err := d.float()
		return Scalar(f), err
	case KindArray:
		ndim, err := d.length()
		if err != nil {
			return nil, err
		}
		shape := make([]int, ndim)
		for i := range shape {
			if shape[i], err = d.length(); err != nil {
				return nil, err
			}
		}
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		data := make([]float64, n)
		for i := range data {
			if data[i], err = d.float(); err != nil {
				return nil, err
			}
		}
		return NewArray(shape, data)
	case KindSequence:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		out := make(Sequence, n)
		for i := range out {
			if out[i], err = d.node(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindMapping:
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		out := make(Mapping, n)
		for i := 0; i < n; i++ {
			k, err := d.str()
			if err != nil {
				return nil, err
			}
			if out[k], err = d.node(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindOpaque:
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		p, err := d.bytes(n)
		if err != nil {
			return nil, err
		}
		m, err := d.measurement(name)
		if err != nil {
			return nil, err
		}
		u, ok := m.(encoding.BinaryUnmarshaler)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoBinaryCodec, name)
		}
		// the payload may live in a pooled buffer
		if err := u.UnmarshalBinary(append([]byte(nil), p...)); err != nil {
			return nil, fmt.Errorf("value: unmarshal %s: %w", name, err)
		}
		return Opaque{M: m}, nil
	}
	return nil, fmt.Errorf("%w: unknown tag %d", ErrCorrupt, tag[0])
}

func (d *decoder) measurement(name string) (Measurement, error) {
	if d.resolve == nil {
		return nil, fmt.Errorf("value: no resolver for measurement type %q", name)
	}
	return d.resolve(name)
}

// textNode is the YAML shape of the textual codec.
type textNode struct {
	Kind   string               `yaml:"kind"`
	Type   string               `yaml:"type,omitempty"`
	Scalar float64              `yaml:"scalar,omitempty"`
	Shape  []int                `yaml:"shape,omitempty,flow"`
	Data   []float64            `yaml:"data,omitempty,flow"`
	Items  []*textNode          `yaml:"items,omitempty"`
	Fields map[string]*textNode `yaml:"fields,omitempty"`
	Text   string               `yaml:"text,omitempty"`
}

// MarshalText renders v as YAML. Opaque measurements must implement
// encoding.TextMarshaler.
func MarshalText(v Value) ([]byte, error) {
	n, err := toTextNode(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

func toTextNode(v Value) (*textNode, error) {
	if v == nil {
		return nil, fmt.Errorf("value: cannot encode nil value")
	}
	n := &textNode{Kind: v.Kind().String()}
	switch x := v.(type) {
	case Scalar:
		n.Scalar = float64(x)
	case Array:
		n.Shape, n.Data = x.Shape, x.Data
	case Sequence:
		n.Items = make([]*textNode, len(x))
		for i, e := range x {
			var err error
			if n.Items[i], err = toTextNode(e); err != nil {
				return nil, err
			}
		}
	case Mapping:
		n.Fields = make(map[string]*textNode, len(x))
		for k, e := range x {
			var err error
			if n.Fields[k], err = toTextNode(e); err != nil {
				return nil, err
			}
		}
	case Opaque:
		m, ok := x.M.(encoding.TextMarshaler)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTextCodec, x.TypeName())
		}
		p, err := m.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("value: marshal %s: %w", x.TypeName(), err)
		}
		n.Type, n.Text = x.M.TypeName(), string(p)
	default:
		return nil, fmt.Errorf("value: cannot encode %T", v)
	}
	return n, nil
}

// UnmarshalText parses the output of MarshalText.
func UnmarshalText(data []byte, resolve Resolver) (Value, error) {
	var n textNode
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("value: parse text: %w", err)
	}
	return fromTextNode(&n, resolve)
}

func fromTextNode(n *textNode, resolve Resolver) (Value, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: empty node", ErrCorrupt)
	}
	k, err := ParseKind(n.Kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case KindScalar:
		return Scalar(n.Scalar), nil
	case KindArray:
		return NewArray(n.Shape, n.Data)
	case KindSequence:
		out := make(Sequence, len(n.Items))
		for i, e := range n.Items {
			if out[i], err = fromTextNode(e, resolve); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindMapping:
		out := make(Mapping, len(n.Fields))
		keys := make([]string, 0, len(n.Fields))
		for key := range n.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if out[key], err = fromTextNode(n.Fields[key], resolve); err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindOpaque:
		if resolve == nil {
			return nil, fmt.Errorf("value: no resolver for measurement type %q", n.Type)
		}
		m, err := resolve(n.Type)
		if err != nil {
			return nil, err
		}
		u, ok := m.(encoding.TextUnmarshaler)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTextCodec, n.Type)
		}
		if err := u.UnmarshalText([]byte(n.Text)); err != nil {
			return nil, fmt.Errorf("value: unmarshal %s: %w", n.Type, err)
		}
		return Opaque{M: m}, nil
	}
	return nil, fmt.Errorf("%w: kind %s", ErrCorrupt, k)
}
