package dataset

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

// maxSmallArchive is the size limit of archives written without zip64.
var maxSmallArchive int64 = 1<<31 - 1

// withArchive opens a fresh read-only view of the archive for the duration of
// fn.
func withArchive(path string, useMmap bool, fn func(r *zip.Reader) error) (err error) {
	v, err := openView(path, useMmap)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := v.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	r, err := zip.NewReader(v.readerAt(), v.size)
	if err != nil {
		return fmt.Errorf("read archive %s: %w", path, err)
	}
	r.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	return fn(r)
}

func newZipWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor(zstd.WithEncoderConcurrency(1)))
	return zw
}

func writeEntry(zw *zip.Writer, name string, method Method, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: uint16(method), Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

func findFile(r *zip.Reader, name string) *zip.File {
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// findDatum looks up base under every known entry extension.
func findDatum(r *zip.Reader, base string) *zip.File {
	for _, ext := range entryExts {
		if f := findFile(r, base+ext); f != nil {
			return f
		}
	}
	return nil
}

func (d *DataSet) entryName(index int) string {
	return fmt.Sprintf("%s%d", d.elem.Name, index)
}

// commitArchive writes a new archive through fill into a uuid-named temporary
// file next to the archive and renames it into place, so readers never see a
// half-written archive.
func (d *DataSet) commitArchive(fill func(zw *zip.Writer) error) error {
	tmpPath := filepath.Join(filepath.Dir(d.path), "."+filepath.Base(d.path)+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary archive: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := newZipWriter(tmp)
	if err := fill(zw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if !d.largeFile {
		st, err := tmp.Stat()
		if err != nil {
			return fmt.Errorf("stat temporary archive: %w", err)
		}
		if st.Size() > maxSmallArchive {
			return fmt.Errorf("%w: %d bytes", ErrCapacity, st.Size())
		}
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temporary archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary archive: %w", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	committed = true
	return nil
}

// writeEmpty writes an archive holding only the type record.
func (d *DataSet) writeEmpty() error {
	return d.commitArchive(func(zw *zip.Writer) error {
		buf := getBuf()
		defer putBuf(buf)
		if err := writeTypeRecord(buf, newTypeRecord(d.elem, d.method, d.largeFile)); err != nil {
			return err
		}
		return writeEntry(zw, typeEntry, d.method, buf.Bytes())
	})
}

// appendEntry copies every existing entry verbatim and adds one more.
func (d *DataSet) appendEntry(name string, data []byte) error {
	return d.commitArchive(func(zw *zip.Writer) error {
		err := withArchive(d.path, d.opts.UseMmap, func(r *zip.Reader) error {
			for _, f := range r.File {
				if err := zw.Copy(f); err != nil {
					return fmt.Errorf("copy entry %s: %w", f.Name, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		return writeEntry(zw, name, d.method, data)
	})
}

// Add appends datum as the next measurement. It fails with a *TypeError if
// datum's element type differs from the archive's.
func (d *DataSet) Add(datum value.Value) error {
	if got := ElementTypeOf(datum); !got.Equal(d.elem) {
		return &TypeError{Want: d.elem, Got: got}
	}
	data, ext, err := encodeDatum(datum)
	if err != nil {
		return fmt.Errorf("encode datum %d: %w", d.count, err)
	}
	name := d.entryName(d.count) + ext
	if err := d.appendEntry(name, data); err != nil {
		return fmt.Errorf("add datum %d: %w", d.count, err)
	}
	d.count++
	d.log.Debug("added datum", zap.String("entry", name), zap.Int("bytes", len(data)))
	return nil
}

// Get reads measurement index. The index is not range-checked here: reading
// an entry that does not exist fails with an error wrapping fs.ErrNotExist.
func (d *DataSet) Get(index int) (value.Value, error) {
	base := d.entryName(index)
	var out value.Value
	err := withArchive(d.path, d.opts.UseMmap, func(r *zip.Reader) error {
		f := findDatum(r, base)
		if f == nil {
			return fmt.Errorf("dataset: read %s: %w", base, fs.ErrNotExist)
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()

		buf := getBuf()
		defer putBuf(buf)
		if _, err := io.Copy(buf, rc); err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		if out, err = decodeDatum(f.Name, buf.Bytes()); err != nil {
			return fmt.Errorf("decode %s: %w", f.Name, err)
		}
		return nil
	})
	return out, err
}

// Set always fails: zip entries cannot be overwritten in place.
func (d *DataSet) Set(index int, datum value.Value) error {
	return fmt.Errorf("set datum %d: %w", index, ErrUnsupported)
}

// Apply transforms every measurement with fn and writes it back with Set, so
// it always fails with ErrUnsupported. It exists so callers written against a
// future writable format keep compiling.
func (d *DataSet) Apply(fn MeasureFunc, args ...any) error {
	for i := 0; i < d.count; i++ {
		datum, err := d.Get(i)
		if err != nil {
			return err
		}
		next, err := fn(datum, args...)
		if err != nil {
			return err
		}
		if err := d.Set(i, next); err != nil {
			return err
		}
	}
	return fmt.Errorf("apply: %w", ErrUnsupported)
}

// Iterator walks the measurements in index order.
//
//	it := ds.Iter()
//	for it.Next() {
//		use(it.Index(), it.Datum())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	d     *DataSet
	next  int
	datum value.Value
	err   error
}

// Iter returns an iterator positioned before the first measurement.
func (d *DataSet) Iter() *Iterator { return &Iterator{d: d} }

// Next loads the next measurement. It returns false at the end or on error.
func (it *Iterator) Next() bool {
	if it.err != nil || it.next >= it.d.count {
		return false
	}
	it.datum, it.err = it.d.Get(it.next)
	if it.err != nil {
		return false
	}
	it.next++
	return true
}

// Index returns the index of the current measurement.
func (it *Iterator) Index() int { return it.next - 1 }

// Datum returns the current measurement.
func (it *Iterator) Datum() value.Value { return it.datum }

// Err returns the first read error.
func (it *Iterator) Err() error { return it.err }
