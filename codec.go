package dataset

import (
	"errors"
	"fmt"
	"path"

	"github.com/klauspost/compress/zstd"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

// Entry extensions. Binary entries keep the historical .npz suffix; values
// whose type has no binary codec are stored as text.
const (
	extBinary = ".npz"
	extText   = ".txt"
)

var entryExts = []string{extBinary, extText}

// encodeDatum serialises v, preferring the binary codec.
func encodeDatum(v value.Value) ([]byte, string, error) {
	data, err := value.MarshalBinary(v)
	if err == nil {
		return data, extBinary, nil
	}
	if !errors.Is(err, value.ErrNoBinaryCodec) {
		return nil, "", err
	}
	data, err = value.MarshalText(v)
	if err != nil {
		return nil, "", err
	}
	return data, extText, nil
}

// decodeDatum picks the codec from the entry name's extension.
func decodeDatum(name string, data []byte) (value.Value, error) {
	switch path.Ext(name) {
	case extBinary:
		return value.UnmarshalBinary(data, lookupMeasurement)
	case extText:
		return value.UnmarshalText(data, lookupMeasurement)
	}
	return nil, fmt.Errorf("dataset: unknown entry format %q", name)
}

// compressFrame wraps p in a zstd frame for the on-disk resample cache.
func compressFrame(p []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(p, make([]byte, 0, len(p)/2)), nil
}

func decompressFrame(p []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(p, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
