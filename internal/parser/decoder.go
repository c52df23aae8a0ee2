package parser

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bodybasics/posetrack/pkg/core"
)

const maxLineSize = 4 << 20

// Decoder reads frames line by line from a recording.
type Decoder struct {
	p       *Parser
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a decoder reading JSON lines from r.
func NewDecoder(p *Parser, r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{p: p, scanner: s}
}

// Next returns the next frame, or io.EOF after the last one. Blank lines
// are skipped.
func (d *Decoder) Next() (core.Frame, error) {
	for d.scanner.Scan() {
		d.line++
		data := d.scanner.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		f, err := d.p.ParseFrame(data)
		if err != nil {
			return core.Frame{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return f, nil
	}
	if err := d.scanner.Err(); err != nil {
		return core.Frame{}, fmt.Errorf("error reading recording: %w", err)
	}
	return core.Frame{}, io.EOF
}

// Recording is an open recording file.
type Recording struct {
	*Decoder
	closers []io.Closer
}

// Open opens a recording. Files ending in .gz are decompressed.
func Open(p *Parser, path string) (*Recording, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening recording: %w", err)
	}

	rec := &Recording{closers: []io.Closer{file}}
	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("error opening gzip recording: %w", err)
		}
		rec.closers = append([]io.Closer{gz}, rec.closers...)
		r = gz
	}
	rec.Decoder = NewDecoder(p, r)
	return rec, nil
}

// Close closes the underlying file.
func (r *Recording) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Encoder writes frames as JSON lines.
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one frame.
func (e *Encoder) Encode(f core.Frame) error {
	if err := e.enc.Encode(ToRecord(f)); err != nil {
		return fmt.Errorf("error encoding frame %d: %w", f.Sequence, err)
	}
	return nil
}
