package vcf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

const sampleVCF = `##fileformat=VCFv4.2
##INFO=<ID=FREQ,Number=.,Type=String,Description="Frequency">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
1	10177	rs367896724	A	AC	100	PASS	FREQ=1000Genomes:0.5747,0.4253|GnomAD:0.6,0.4
12	25245351	.	C	A	.	PASS	.
19	44908684	rs429358	T	C,G	50	PASS	FREQ=TOPMED:0.85,0.14,.
`

func writeVCF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vcf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write test vcf: %v", err)
	}
	return path
}

func writeGzippedVCF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vcf.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create gzipped vcf: %v", err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("write gzipped vcf: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return path
}

func TestParserReadsVariants(t *testing.T) {
	parser, err := NewParser(writeVCF(t, sampleVCF))
	if err != nil {
		t.Fatalf("create parser: %v", err)
	}
	defer parser.Close()

	v, err := parser.Next()
	if err != nil {
		t.Fatalf("read first variant: %v", err)
	}
	if v == nil {
		t.Fatal("expected a variant, got nil")
	}
	if v.Chrom != "1" || v.Pos != 10177 || v.Ref != "A" || v.Alt != "AC" {
		t.Errorf("unexpected first variant: %+v", v)
	}
	if v.ID != "rs367896724" {
		t.Errorf("expected rs id, got %q", v.ID)
	}
	if !v.IsInsertion() {
		t.Error("A>AC should be an insertion")
	}

	v, err = parser.Next()
	if err != nil {
		t.Fatalf("read second variant: %v", err)
	}
	if !v.IsSNV() {
		t.Error("C>A should be a SNV")
	}
	if v.RefSnpID() != "" {
		t.Errorf("ID %q should not yield an rs id", v.ID)
	}

	v, err = parser.Next()
	if err != nil {
		t.Fatalf("read third variant: %v", err)
	}
	if v.Alt != "C,G" {
		t.Errorf("expected unsplit alt column, got %q", v.Alt)
	}

	v, err = parser.Next()
	if err != nil {
		t.Fatalf("check for eof: %v", err)
	}
	if v != nil {
		t.Error("expected no more variants")
	}
}

func TestParserGzipped(t *testing.T) {
	parser, err := NewParser(writeGzippedVCF(t, sampleVCF))
	if err != nil {
		t.Fatalf("create parser: %v", err)
	}
	defer parser.Close()

	n := 0
	for {
		v, err := parser.Next()
		if err != nil {
			t.Fatalf("read variant: %v", err)
		}
		if v == nil {
			break
		}
		n++
	}
	if n != 3 {
		t.Errorf("expected 3 variants from gzipped file, got %d", n)
	}
}

func TestParserMissingHeader(t *testing.T) {
	_, err := NewParser(writeVCF(t, "1\t100\t.\tA\tT\t.\tPASS\t.\n"))
	if err == nil {
		t.Fatal("expected header error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("expected *ParseError, got %T", err)
	}
}

func TestParserShortLine(t *testing.T) {
	parser, err := NewParser(writeVCF(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\t100\t.\n"))
	if err != nil {
		t.Fatalf("create parser: %v", err)
	}
	defer parser.Close()

	_, err = parser.Next()
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Line != 2 {
		t.Errorf("expected error at line 2, got %d", perr.Line)
	}
}

func TestSplitMultiAllelic(t *testing.T) {
	v := &Variant{Chrom: "19", Pos: 44908684, ID: "rs429358", Ref: "T", Alt: "C,G"}
	split := SplitMultiAllelic(v)
	if len(split) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(split))
	}
	if split[0].Alt != "C" || split[0].AltIndex != 0 {
		t.Errorf("unexpected first allele: %+v", split[0])
	}
	if split[1].Alt != "G" || split[1].AltIndex != 1 {
		t.Errorf("unexpected second allele: %+v", split[1])
	}

	single := SplitMultiAllelic(&Variant{Chrom: "1", Pos: 1, Ref: "A", Alt: "T"})
	if len(single) != 1 {
		t.Errorf("single-allele variant should not split")
	}
}
