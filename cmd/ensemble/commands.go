package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dataset "github.com/luhtfiimanal/go-ensemble-archive"
	"github.com/luhtfiimanal/go-ensemble-archive/value"
)

var (
	binSize       int
	numBootstraps int
	seed          uint64
	noCache       bool
)

var importCmd = &cobra.Command{
	Use:   "import <archive> <file>",
	Short: "Create a scalar archive from a text file with one value per line",
	Long: `Creates (or replaces) <archive> and appends every number in <file>.
Blank lines and lines starting with # are skipped. Use - to read stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

var infoCmd = &cobra.Command{
	Use:   "info <archive>",
	Short: "Describe an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var getCmd = &cobra.Command{
	Use:   "get <archive> <index>",
	Short: "Print one measurement",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var statsCmd = &cobra.Command{
	Use:   "stats <archive>",
	Short: "Print the mean and standard deviation of all measurements",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var jackknifeCmd = &cobra.Command{
	Use:   "jackknife <archive>",
	Short: "Estimate the mean with a jackknife error",
	Args:  cobra.ExactArgs(1),
	RunE:  runJackknife,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap <archive>",
	Short: "Estimate the mean with a bootstrap error",
	Args:  cobra.ExactArgs(1),
	RunE:  runBootstrap,
}

func init() {
	for _, c := range []*cobra.Command{jackknifeCmd, bootstrapCmd} {
		c.Flags().IntVar(&binSize, "binsize", 0, "measurements per bin (default from config)")
		c.Flags().BoolVar(&noCache, "no-cache", false, "resample directly instead of through the cache")
	}
	bootstrapCmd.Flags().IntVarP(&numBootstraps, "num", "n", 0, "number of bootstrap resamples (default from config)")
	bootstrapCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default from config)")
}

func identity(datum value.Value, _ ...any) (value.Value, error) { return datum, nil }

func render(v value.Value) (string, error) {
	if s, ok := v.(value.Scalar); ok {
		return strconv.FormatFloat(float64(s), 'g', -1, 64), nil
	}
	b, err := value.MarshalText(v)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func printEstimate(w io.Writer, label string, mean, std value.Value) error {
	m, err := render(mean)
	if err != nil {
		return err
	}
	s, err := render(std)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s mean: %s\n%s error: %s\n", label, m, label, s)
	return nil
}

func readScalars(r io.Reader) ([]float64, error) {
	var vals []float64
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vals = append(vals, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read measurements: %w", err)
	}
	return vals, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open measurements: %w", err)
		}
		defer f.Close()
		in = f
	}
	vals, err := readScalars(in)
	if err != nil {
		return err
	}

	opts, err := cfg.Options(logger)
	if err != nil {
		return err
	}
	ds, err := dataset.Create(dataset.Float, args[0], opts...)
	if err != nil {
		return err
	}
	for i, v := range vals {
		if err := ds.Add(value.Scalar(v)); err != nil {
			return fmt.Errorf("measurement %d: %w", i, err)
		}
	}
	logger.Info("imported measurements", zap.String("archive", ds.Path()), zap.Int("count", ds.Len()))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d measurements into %s\n", ds.Len(), ds.Path())
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ds, err := loadArchive(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, ds)
	fmt.Fprintf(w, "Compression: %s\nLarge file: %t\nCache dir: %s\n", ds.Method(), ds.LargeFile(), ds.CacheDir())
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}
	ds, err := loadArchive(args[0])
	if err != nil {
		return err
	}
	datum, err := ds.Get(index)
	if err != nil {
		return err
	}
	out, err := value.MarshalText(datum)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runStats(cmd *cobra.Command, args []string) error {
	ds, err := loadArchive(args[0])
	if err != nil {
		return err
	}
	mean, std, err := ds.Statistics()
	if err != nil {
		return err
	}
	return printEstimate(cmd.OutOrStdout(), "sample", mean, std)
}

func resampleOptions() []dataset.ResampleOption {
	size := binSize
	if size == 0 {
		size = cfg.Resample.BinSize
	}
	return []dataset.ResampleOption{
		dataset.WithBinSize(size),
		dataset.WithCache(cfg.Resample.Cache && !noCache),
	}
}

// closeArchive flushes the resample cache and keeps the first error.
func closeArchive(ds *dataset.DataSet, err *error) {
	if cerr := ds.Close(); cerr != nil {
		if *err == nil {
			*err = fmt.Errorf("flush resample cache: %w", cerr)
			return
		}
		logger.Warn("failed to flush resample cache", zap.String("dir", ds.CacheDir()), zap.Error(cerr))
	}
}

func runJackknife(cmd *cobra.Command, args []string) (err error) {
	ds, err := loadArchive(args[0])
	if err != nil {
		return err
	}
	defer closeArchive(ds, &err)
	mean, std, err := ds.Jackknife(identity, resampleOptions()...)
	if err != nil {
		return err
	}
	return printEstimate(cmd.OutOrStdout(), "jackknife", mean, std)
}

func runBootstrap(cmd *cobra.Command, args []string) (err error) {
	var extra []dataset.Option
	if seed != 0 {
		extra = append(extra, dataset.WithSeed(seed))
	}
	ds, err := loadArchive(args[0], extra...)
	if err != nil {
		return err
	}
	defer closeArchive(ds, &err)
	n := numBootstraps
	if n == 0 {
		n = cfg.Resample.NumBootstraps
	}
	mean, std, err := ds.Bootstrap(identity, n, resampleOptions()...)
	if err != nil {
		return err
	}
	return printEstimate(cmd.OutOrStdout(), "bootstrap", mean, std)
}
