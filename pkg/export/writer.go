// Package export writes collected repositories to a date-stamped snapshot
// file.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/github-star-export/pkg/extract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var snapshotsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "star_export_snapshots_written_total",
	Help: "Total snapshot files written by format",
}, []string{"format"})

// ErrUnknownFormat is returned by New for an unsupported Format.
var ErrUnknownFormat = errors.New("unknown export format")

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// DefaultDir is where snapshots go when Config.Dir is empty.
const DefaultDir = "data/github/star"

// SheetName is the worksheet holding the rows of an xlsx snapshot.
const SheetName = "stars"

// Columns is the header row, in output order.
var Columns = []string{"title", "language", "url", "description"}

// Writer persists a snapshot of repositories.
type Writer interface {
	// Write stores repos and returns the path written.
	Write(repos []extract.Repo) (string, error)
}

// Config holds writer configuration.
type Config struct {
	Dir    string
	Format string

	// Now stamps the file name. Defaults to time.Now.
	Now func() time.Time
}

// New returns the Writer for cfg.Format. An empty format selects xlsx.
func New(cfg Config) (Writer, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = FormatXLSX
	}

	base := fileWriter{
		dir:    cfg.Dir,
		format: format,
		now:    cfg.Now,
		logger: log.With().Str("component", "export").Str("format", format).Logger(),
	}
	switch format {
	case FormatXLSX:
		return &XLSXWriter{base}, nil
	case FormatCSV:
		return &CSVWriter{base}, nil
	default:
		return nil, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownFormat, cfg.Format, FormatXLSX, FormatCSV)
	}
}

// Path returns the file a snapshot taken at t is written to.
func Path(dir, format string, t time.Time) string {
	return filepath.Join(dir, t.Format(time.DateOnly)+"."+format)
}

type fileWriter struct {
	dir    string
	format string
	now    func() time.Time
	logger zerolog.Logger
}

// prepare creates the output directory and returns the target path.
func (w fileWriter) prepare() (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return Path(w.dir, w.format, w.now()), nil
}

func (w fileWriter) written(path string, rows int) {
	snapshotsWritten.WithLabelValues(w.format).Inc()
	w.logger.Info().Str("path", path).Int("rows", rows).Msg("Snapshot written")
}

func row(r extract.Repo) []string {
	return []string{r.Title, r.Language, r.URL, r.Description}
}

// XLSXWriter writes a single-sheet workbook.
type XLSXWriter struct {
	fileWriter
}

// Write implements Writer.
func (w *XLSXWriter) Write(repos []extract.Repo) (string, error) {
	path, err := w.prepare()
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return "", fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, r := range repos {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		values := row(r)
		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}

	w.written(path, len(repos))
	return path, nil
}

// CSVWriter writes RFC 4180 CSV with a header row.
type CSVWriter struct {
	fileWriter
}

// Write implements Writer.
func (w *CSVWriter) Write(repos []extract.Repo) (path string, err error) {
	path, err = w.prepare()
	if err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			path, err = "", fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	cw := csv.NewWriter(file)
	if err := cw.Write(Columns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, r := range repos {
		if err := cw.Write(row(r)); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}

	w.written(path, len(repos))
	return path, nil
}
