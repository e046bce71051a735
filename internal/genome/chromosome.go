// Package genome provides the reference chromosome set used to partition
// the variant store. Chromosome names are stored without the "chr" prefix;
// lengths are GRCh38 sequence lengths.
package genome

import (
	"sort"
	"strings"
)

// Length of each human chromosome (GRCh38).
var chromosomeLengths = map[string]int64{
	"1": 248956422, "2": 242193529, "3": 198295559, "4": 190214555,
	"5": 181538259, "6": 170805979, "7": 159345973, "8": 145138636,
	"9": 138394717, "10": 133797422, "11": 135086622, "12": 133275309,
	"13": 114364328, "14": 107043718, "15": 101991189, "16": 90338345,
	"17": 83257441, "18": 80373285, "19": 58617616, "20": 64444167,
	"21": 46709983, "22": 50818468, "X": 156040895, "Y": 57227415,
	"M": 16569,
}

// Normalize returns the canonical chromosome name: "chr" prefix stripped,
// "MT" mapped to "M", case folded to upper for X/Y/M.
func Normalize(chrom string) string {
	c := strings.TrimPrefix(chrom, "chr")
	c = strings.ToUpper(c)
	if c == "MT" {
		c = "M"
	}
	return c
}

// Length returns the sequence length of a chromosome and whether it is known.
// The name is normalized before lookup.
func Length(chrom string) (int64, bool) {
	n, ok := chromosomeLengths[Normalize(chrom)]
	return n, ok
}

// IsKnown reports whether the chromosome belongs to the reference set.
func IsKnown(chrom string) bool {
	_, ok := chromosomeLengths[Normalize(chrom)]
	return ok
}

// All returns every chromosome name in karyotype order (1-22, X, Y, M).
func All() []string {
	names := make([]string, 0, len(chromosomeLengths))
	for name := range chromosomeLengths {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return rank(names[i]) < rank(names[j])
	})
	return names
}

func rank(name string) int {
	switch name {
	case "X":
		return 23
	case "Y":
		return 24
	case "M":
		return 25
	}
	r := 0
	for _, c := range name {
		r = r*10 + int(c-'0')
	}
	return r
}
