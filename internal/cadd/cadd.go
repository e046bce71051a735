// Package cadd reads CADD score files (gzipped TSV, one row per allele) and
// converts them into cadd_scores payloads. CADD ships SNVs and indels as
// separate files; a Source chains them into one payload stream.
package cadd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/vibe-vdb/internal/merge"
	"github.com/inodb/vibe-vdb/internal/variant"
)

// Score is one scored allele from a CADD file.
type Score struct {
	Chromosome string
	Position   int64
	Ref        string
	Alt        string
	RawScore   float64
	PHRED      float64
}

// Fragment renders the score as a cadd_scores annotation fragment.
func (s Score) Fragment() json.RawMessage {
	out, _ := json.Marshal(map[string]float64{
		"CADD_raw_score": s.RawScore,
		"CADD_phred":     s.PHRED,
	})
	return out
}

// Reader streams scores from one CADD TSV file. Rows look like:
//
//	#Chrom  Pos  Ref  Alt  RawScore  PHRED
//	1       10177  A   AC   0.122     2.551
//
// Header lines start with "#".
type Reader struct {
	scanner    *bufio.Scanner
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
}

// NewReader opens a CADD score file, plain or gzipped.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cadd file: %w", err)
	}

	r := &Reader{file: file}
	var src io.Reader = file

	buf := make([]byte, 2)
	if _, err := file.Read(buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read cadd file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek cadd file: %w", err)
	}
	if buf[0] == 0x1f && buf[1] == 0x8b {
		r.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		src = r.gzipReader
	}

	r.scanner = bufio.NewScanner(src)
	return r, nil
}

// Next returns the next score, or nil, nil at end of input.
func (r *Reader) Next() (*Score, error) {
	for r.scanner.Scan() {
		r.lineNumber++
		line := r.scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 6 {
			return nil, fmt.Errorf("cadd row at line %d has %d columns, want 6", r.lineNumber, len(fields))
		}
		pos, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cadd row at line %d: invalid position %q", r.lineNumber, fields[1])
		}
		raw, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("cadd row at line %d: invalid raw score %q", r.lineNumber, fields[4])
		}
		phred, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("cadd row at line %d: invalid phred score %q", r.lineNumber, fields[5])
		}

		return &Score{
			Chromosome: fields[0],
			Position:   pos,
			Ref:        fields[2],
			Alt:        fields[3],
			RawScore:   raw,
			PHRED:      phred,
		}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cadd file: %w", err)
	}
	return nil, nil
}

// Close closes the reader and underlying file.
func (r *Reader) Close() error {
	if r.gzipReader != nil {
		r.gzipReader.Close()
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Source chains one or more CADD files into a payload stream. Scores only
// update existing records, so loads driven by this source run with implicit
// inserts disabled.
type Source struct {
	paths   []string
	current *Reader
}

// NewSource creates a source over the given CADD files, read in order
// (typically the SNV file followed by the indel file).
func NewSource(paths ...string) *Source {
	return &Source{paths: paths}
}

// Next returns the payload for the next scored allele, or nil, nil once all
// files are exhausted.
func (s *Source) Next() (*merge.Payload, error) {
	for {
		if s.current == nil {
			if len(s.paths) == 0 {
				return nil, nil
			}
			r, err := NewReader(s.paths[0])
			if err != nil {
				return nil, err
			}
			s.paths = s.paths[1:]
			s.current = r
		}

		score, err := s.current.Next()
		if err != nil {
			return nil, err
		}
		if score == nil {
			s.current.Close()
			s.current = nil
			continue
		}

		return &merge.Payload{
			Chromosome: score.Chromosome,
			Position:   score.Position,
			Ref:        score.Ref,
			Alt:        score.Alt,
			Fragments: []merge.Fragment{{
				Name:   variant.FragmentCADDScores,
				Value:  score.Fragment(),
				Policy: merge.PolicyReplace,
			}},
		}, nil
	}
}

// Close closes the current reader, if any.
func (s *Source) Close() error {
	if s.current != nil {
		return s.current.Close()
	}
	return nil
}
