package dataset

import (
	"fmt"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

// binSpan is the run of measurement indices [offset, offset+size) averaged
// into one bin. size is smaller than the nominal bin size only for the last
// bin of an ensemble whose length is not a multiple of it.
type binSpan struct {
	offset int
	size   int
}

// NumBins returns ceil(Len()/binSize).
func (d *DataSet) NumBins(binSize int) int {
	if binSize < 1 {
		return 0
	}
	return (d.count + binSize - 1) / binSize
}

// findBin returns the span covered by bin binIndex.
func (d *DataSet) findBin(binSize, binIndex int) (binSpan, error) {
	if binSize < 1 {
		return binSpan{}, fmt.Errorf("%w: bin size %d is less than 1", ErrInvalidParam, binSize)
	}
	if binIndex < 0 || binIndex >= d.NumBins(binSize) {
		return binSpan{}, fmt.Errorf("%w: bin %d out of range (%d bins of size %d)",
			ErrInvalidParam, binIndex, d.NumBins(binSize), binSize)
	}
	start := binSize * binIndex
	end := min(start+binSize, d.count)
	return binSpan{offset: start, size: end - start}, nil
}

// Bin averages the measurements in bin binIndex.
//
// The sum is always divided by the nominal binSize, including for a truncated
// last bin: [1 2 3 4 5] with binSize 2 gives bins [1.5 3.5 2.5]. Existing
// analyses depend on this weighting.
func (d *DataSet) Bin(binSize, binIndex int) (value.Value, error) {
	span, err := d.findBin(binSize, binIndex)
	if err != nil {
		return nil, err
	}
	out, err := d.Get(span.offset)
	if err != nil {
		return nil, err
	}
	for i := span.offset + 1; i < span.offset+span.size; i++ {
		datum, err := d.Get(i)
		if err != nil {
			return nil, err
		}
		if out, err = value.Add(out, datum); err != nil {
			return nil, fmt.Errorf("bin %d: %w", binIndex, err)
		}
	}
	return value.DivScalar(out, float64(binSize))
}

// Bins materialises every bin for binSize.
func (d *DataSet) Bins(binSize int) ([]value.Value, error) {
	if binSize < 1 {
		return nil, fmt.Errorf("%w: bin size %d is less than 1", ErrInvalidParam, binSize)
	}
	bins := make([]value.Value, d.NumBins(binSize))
	for i := range bins {
		var err error
		if bins[i], err = d.Bin(binSize, i); err != nil {
			return nil, err
		}
	}
	return bins, nil
}

// sumValues adds vals element-wise.
func sumValues(vals []value.Value) (value.Value, error) {
	if len(vals) == 0 {
		return nil, value.ErrEmpty
	}
	out := vals[0]
	for _, v := range vals[1:] {
		var err error
		if out, err = value.Add(out, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}
