package value

// Mean averages vals element-wise: repeated Add, then divide by the count.
func Mean(vals []Value) (Value, error) {
	if len(vals) == 0 {
		return nil, ErrEmpty
	}
	out := vals[0]
	for _, v := range vals[1:] {
		var err error
		if out, err = Add(out, v); err != nil {
			return nil, err
		}
	}
	return DivScalar(out, float64(len(vals)))
}

// Std is the population standard deviation sqrt(sum((x-mean)^2)/n), used for
// bootstrap errors and Statistics.
func Std(vals []Value) (Value, error) {
	ss, err := squaredDeviations(vals)
	if err != nil {
		return nil, err
	}
	v, err := DivScalar(ss, float64(len(vals)))
	if err != nil {
		return nil, err
	}
	return Sqrt(v)
}

// JackknifeStd is the bias-corrected jackknife error
// sqrt(sum((x-mean)^2) * (n-1)/n). It needs at least two values.
func JackknifeStd(vals []Value) (Value, error) {
	if len(vals) == 1 {
		return nil, ErrTooFew
	}
	ss, err := squaredDeviations(vals)
	if err != nil {
		return nil, err
	}
	n := float64(len(vals))
	v, err := DivScalar(ss, n/(n-1))
	if err != nil {
		return nil, err
	}
	return Sqrt(v)
}

func squaredDeviations(vals []Value) (Value, error) {
	mean, err := Mean(vals)
	if err != nil {
		return nil, err
	}
	var out Value
	for i, v := range vals {
		diff, err := Sub(v, mean)
		if err != nil {
			return nil, err
		}
		sq, err := Mul(diff, diff)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			out = sq
			continue
		}
		if out, err = Add(out, sq); err != nil {
			return nil, err
		}
	}
	return out, nil
}
