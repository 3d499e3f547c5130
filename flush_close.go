package dataset

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Flush writes every in-memory resample to the disk cache directory so other
// processes working on the same archive can reuse them.
func (d *DataSet) Flush() error {
	names := make([]string, 0, len(d.cache))
	for name := range d.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.writeCacheFile(name, d.cache[name]); err != nil {
			return fmt.Errorf("flush %s: %w", name, err)
		}
	}
	if len(names) > 0 {
		d.log.Debug("flushed resample cache", zap.String("dir", d.cacheDir), zap.Int("records", len(names)))
	}
	return nil
}

// Close flushes the resample cache and releases its memory. The archive stays
// usable; later lookups are served from disk.
func (d *DataSet) Close() error {
	if err := d.Flush(); err != nil {
		return err
	}
	clear(d.cache)
	d.cacheBytes = 0
	return nil
}
