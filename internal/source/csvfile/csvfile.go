package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"superstore/internal/core"
	"superstore/internal/source"
)

// Encoding names accepted by WithEncoding.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

type config struct {
	delimiter rune
	encoding  string
}

// Option configures a File reader.
type Option func(*config)

// WithDelimiter sets the field delimiter (default ',').
func WithDelimiter(d rune) Option {
	return func(c *config) {
		c.delimiter = d
	}
}

// WithEncoding sets the file character encoding. The public superstore export
// is commonly distributed as windows-1252.
func WithEncoding(enc string) Option {
	return func(c *config) {
		c.encoding = strings.ToLower(strings.TrimSpace(enc))
	}
}

// File reads the dataset table from a CSV file on disk.
type File struct {
	path string
	cfg  config
}

var _ source.Reader = (*File)(nil)

// New returns a reader for the CSV file at path.
func New(path string, opts ...Option) *File {
	cfg := config{delimiter: ',', encoding: EncodingUTF8}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &File{path: path, cfg: cfg}
}

// Name returns the file path.
func (f *File) Name() string { return f.path }

// ReadTable opens and fully reads the file. Missing or unreadable files are
// reported as *core.LoadError.
func (f *File) ReadTable(ctx context.Context) (source.Table, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return source.Table{}, &core.LoadError{Source: f.path, Err: err}
	}
	defer fh.Close()

	var r io.Reader = fh
	switch f.cfg.encoding {
	case "", EncodingUTF8, "utf8":
	case EncodingWindows1252, "cp1252", "latin1", "iso-8859-1":
		r = charmap.Windows1252.NewDecoder().Reader(fh)
	default:
		return source.Table{}, &core.LoadError{Source: f.path, Err: fmt.Errorf("unsupported encoding %q", f.cfg.encoding)}
	}

	t, err := Decode(ctx, r, f.cfg.delimiter)
	if err != nil {
		return source.Table{}, &core.LoadError{Source: f.path, Err: err}
	}
	slog.DebugContext(ctx, "CSV table read", "path", f.path, "rows", len(t.Rows), "columns", len(t.Header))
	return t, nil
}

// Decode reads a CSV stream into a Table. The first record is the header; a
// leading UTF-8 byte order mark is stripped. Blank lines are skipped.
func Decode(ctx context.Context, r io.Reader, delimiter rune) (source.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return source.Table{}, errors.New("csv file is empty")
	}
	if err != nil {
		return source.Table{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := source.Table{Header: header}
	for {
		if err := ctx.Err(); err != nil {
			return source.Table{}, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return source.Table{}, fmt.Errorf("read record: %w", err)
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}
