package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"akamaru/internal/app/core"
)

// Writer exports rows to <Dir>/akamaru_report_DD-MM-YYYY.csv.
type Writer struct {
	Dir string
	Now func() time.Time
}

// NewWriter returns a Writer for dir, defaulting to the standard output directory.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = core.DefaultOutputDir
	}
	return &Writer{Dir: dir, Now: time.Now}
}

// Path is the file a write made now would produce. Same-day runs share it.
func (w *Writer) Path() string {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return filepath.Join(w.Dir, fmt.Sprintf("akamaru_report_%s.csv", now().Format("02-01-2006")))
}

// tempPattern names the scratch file a write renames into place.
const tempPattern = ".akamaru_report_*.tmp"

// Write replaces the day's report with rows. The content goes to a temporary
// file in the same directory which is renamed over the report once flushed,
// so a previous report is never left half-written. Scratch files left by a
// run killed mid-write are removed first.
func (w *Writer) Write(rows []Row) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	w.removeStale()
	path := w.Path()

	tmp, err := os.CreateTemp(w.Dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, rows); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replace report: %w", err)
	}
	return path, nil
}

func (w *Writer) removeStale() {
	stale, _ := filepath.Glob(filepath.Join(w.Dir, tempPattern))
	for _, f := range stale {
		_ = os.Remove(f)
	}
}

// Encode writes the header and rows to out.
func Encode(out io.Writer, rows []Row) error {
	cw := csv.NewWriter(out)
	cw.Comma = ';'
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return fmt.Errorf("write row %q: %w", r.Group, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a report file back into rows. None fields become empty strings.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses an export stream.
func Decode(in io.Reader) ([]Row, error) {
	cr := csv.NewReader(in)
	cr.Comma = ';'
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty report")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Group:         fromNone(rec[0]),
			Source:        fromNone(rec[1]),
			URL:           fromNone(rec[2]),
			RelatedGroups: fromNone(rec[3]),
			Softwares:     fromNone(rec[4]),
		})
	}
}

func fromNone(s string) string {
	if s == None {
		return ""
	}
	return s
}
