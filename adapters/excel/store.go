package excel

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
	"clusterkit/internal"
	apperrors "clusterkit/internal/errors"
	"clusterkit/ports"

	"github.com/xuri/excelize/v2"
)

// Sheet names and header prefixes of the workbook layout.
//
// The data sheet holds one row per sample point:
//
//	index | re:<coeff> im:<coeff> ... | bin:0 bin:1 ... | aux:<column> ...
//
// The meta sheet holds key/value pairs. NaN cells are left empty.
const (
	SheetData = "Data"
	SheetMeta = "Meta"

	headerIndex = "index"
	prefixRe    = "re:"
	prefixIm    = "im:"
	prefixBin   = "bin:"
	prefixAux   = "aux:"
)

// Store keeps one .xlsx workbook per data container in a directory.
type Store struct {
	dir    string
	logger ports.Logger
}

var _ ports.DataStore = (*Store)(nil)

// NewStore creates a store writing workbooks to dir. A nil logger logs
// through the default logger.
func NewStore(dir string, logger ports.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{dir: dir, logger: logger}
}

// Path returns the workbook path used for name.
func (s *Store) Path(name core.DatasetName) string {
	return filepath.Join(s.dir, name.String()+".xlsx")
}

// List returns the names of the workbooks in the store directory. A missing
// directory holds no containers.
func (s *Store) List(ctx context.Context) ([]core.DatasetName, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StorageError("failed to list workbooks", err)
	}
	var names []core.DatasetName
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".xlsx" {
			continue
		}
		names = append(names, core.DatasetName(strings.TrimSuffix(e.Name(), ".xlsx")))
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// Delete removes the workbook stored under name.
func (s *Store) Delete(ctx context.Context, name core.DatasetName) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(s.Path(name))
	if os.IsNotExist(err) {
		return core.NewNotFoundError("dataset", name.String())
	}
	if err != nil {
		return apperrors.StorageError("failed to delete workbook", err)
	}
	s.logger.Debug("deleted %s", s.Path(name))
	return nil
}

func validName(name core.DatasetName) error {
	n := name.String()
	if strings.TrimSpace(n) == "" || n == "." || n == ".." || strings.ContainsAny(n, `/\`) {
		return core.NewInputError("invalid dataset name %q", n)
	}
	return nil
}

// Save writes d to <dir>/<name>.xlsx, replacing an existing workbook.
func (s *Store) Save(ctx context.Context, name core.DatasetName, d *data.Data) error {
	if err := validName(name); err != nil {
		return err
	}
	if d == nil {
		return core.NewInputError("nil data container")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetData); err != nil {
		return apperrors.StorageError("failed to create data sheet", err)
	}
	if err := writeData(f, d); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetMeta); err != nil {
		return apperrors.StorageError("failed to create meta sheet", err)
	}
	if err := writeMeta(f, d); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return apperrors.StorageError("failed to create store directory", err)
	}
	if err := f.SaveAs(s.Path(name)); err != nil {
		return apperrors.StorageError(fmt.Sprintf("failed to write %s", s.Path(name)), err)
	}
	s.logger.Debug("[ExcelStore] saved %s (%d rows) in %.2fms", name, d.Len(), float64(time.Since(start).Nanoseconds())/1e6)
	return nil
}

func writeData(f *excelize.File, d *data.Data) error {
	names := d.CoeffNames()
	points := d.Points()
	outputs := d.Outputs()
	index := d.Index()
	aux := d.AuxiliaryColumns()

	bins := 0
	if len(outputs) > 0 {
		bins = len(outputs[0])
	}

	header := []interface{}{headerIndex}
	for _, n := range names {
		header = append(header, prefixRe+n, prefixIm+n)
	}
	for k := 0; k < bins; k++ {
		header = append(header, prefixBin+strconv.Itoa(k))
	}
	columns := make([][]float64, len(aux))
	for j, n := range aux {
		header = append(header, prefixAux+n)
		columns[j], _ = d.AuxiliaryColumn(n)
	}
	if err := f.SetSheetRow(SheetData, "A1", &header); err != nil {
		return apperrors.StorageError("failed to write header", err)
	}

	for i := range points {
		row := make([]interface{}, 0, len(header))
		row = append(row, index[i])
		for _, c := range points[i] {
			row = append(row, real(c), imag(c))
		}
		for _, v := range outputs[i] {
			row = append(row, cellValue(v))
		}
		for j := range aux {
			row = append(row, cellValue(columns[j][i]))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.StorageError("failed to address row", err)
		}
		if err := f.SetSheetRow(SheetData, cell, &row); err != nil {
			return apperrors.StorageError(fmt.Sprintf("failed to write row %d", i), err)
		}
	}
	return nil
}

func writeMeta(f *excelize.File, d *data.Data) error {
	header := []interface{}{"key", "value"}
	if err := f.SetSheetRow(SheetMeta, "A1", &header); err != nil {
		return apperrors.StorageError("failed to write meta header", err)
	}
	for i, k := range d.MetaKeys() {
		v, _ := d.Meta(k)
		row := []interface{}{k, v}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetMeta, cell, &row); err != nil {
			return apperrors.StorageError("failed to write meta", err)
		}
	}
	return nil
}

func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// Load reads the workbook stored under name.
func (s *Store) Load(ctx context.Context, name core.DatasetName) (*data.Data, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, core.NewNotFoundError("dataset", name.String())
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.StorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetData, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.StorageError("failed to read data sheet", err)
	}
	if len(rows) == 0 {
		return nil, core.NewInputError("%s: data sheet has no header", path)
	}
	l, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	points := make([][]complex128, 0, len(rows)-1)
	outputs := make([][]float64, 0, len(rows)-1)
	index := make([]int, 0, len(rows)-1)
	columns := make(map[string][]float64, len(l.aux))
	for _, n := range l.aux {
		columns[n] = make([]float64, 0, len(rows)-1)
	}

	for r, row := range rows[1:] {
		id, err := strconv.Atoi(cell(row, 0))
		if err != nil {
			return nil, core.NewInputError("%s row %d: bad index: %v", path, r+2, err)
		}
		p := make([]complex128, len(l.coeffs))
		for k := range l.coeffs {
			re, err1 := parseFloat(cell(row, l.re[k]))
			im, err2 := parseFloat(cell(row, l.im[k]))
			if err1 != nil || err2 != nil {
				return nil, core.NewInputError("%s row %d: bad coordinate %s", path, r+2, l.coeffs[k])
			}
			p[k] = complex(re, im)
		}
		out := make([]float64, len(l.bins))
		for k, col := range l.bins {
			v, err := parseFloat(cell(row, col))
			if err != nil {
				return nil, core.NewInputError("%s row %d: bad bin %d", path, r+2, k)
			}
			out[k] = v
		}
		for j, n := range l.aux {
			v, err := parseFloat(cell(row, l.auxCols[j]))
			if err != nil {
				return nil, core.NewInputError("%s row %d: bad value in column %s", path, r+2, n)
			}
			columns[n] = append(columns[n], v)
		}
		points = append(points, p)
		outputs = append(outputs, out)
		index = append(index, id)
	}

	meta, err := readMeta(f)
	if err != nil {
		return nil, err
	}

	d, err := data.Restore(l.coeffs, points, outputs, index, columns, meta)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("[ExcelStore] loaded %s (%d rows)", name, d.Len())
	return d, nil
}

type layout struct {
	coeffs  []string
	re, im  []int
	bins    []int
	aux     []string
	auxCols []int
}

func parseHeader(header []string) (*layout, error) {
	if len(header) == 0 || header[0] != headerIndex {
		return nil, core.NewInputError("data sheet must start with an %q column", headerIndex)
	}
	l := &layout{}
	imCols := make(map[string]int)
	bins := make(map[int]int)
	for col, h := range header[1:] {
		col++
		switch {
		case strings.HasPrefix(h, prefixRe):
			l.coeffs = append(l.coeffs, strings.TrimPrefix(h, prefixRe))
			l.re = append(l.re, col)
		case strings.HasPrefix(h, prefixIm):
			imCols[strings.TrimPrefix(h, prefixIm)] = col
		case strings.HasPrefix(h, prefixBin):
			k, err := strconv.Atoi(strings.TrimPrefix(h, prefixBin))
			if err != nil {
				return nil, core.NewInputError("bad bin header %q", h)
			}
			bins[k] = col
		case strings.HasPrefix(h, prefixAux):
			l.aux = append(l.aux, strings.TrimPrefix(h, prefixAux))
			l.auxCols = append(l.auxCols, col)
		default:
			return nil, core.NewInputError("unknown column %q", h)
		}
	}

	for _, n := range l.coeffs {
		col, ok := imCols[n]
		if !ok {
			return nil, core.NewInputError("coefficient %s has no imaginary column", n)
		}
		l.im = append(l.im, col)
	}
	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for i, k := range keys {
		if k != i {
			return nil, core.NewInputError("bin columns are not contiguous: missing bin %d", i)
		}
		l.bins = append(l.bins, bins[k])
	}
	return l, nil
}

func readMeta(f *excelize.File) (map[string]string, error) {
	rows, err := f.GetRows(SheetMeta)
	if err != nil {
		return nil, apperrors.StorageError("failed to read meta sheet", err)
	}
	meta := make(map[string]string)
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		meta[row[0]] = cell(row, 1)
	}
	return meta, nil
}

// cell returns row[i], or "" for cells GetRows trimmed off the end.
func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
