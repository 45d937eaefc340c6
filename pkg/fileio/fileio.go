// Package fileio reads citation networks from and writes classifications to
// tab-separated text files.
//
// A publications file has one line per publication with two columns: the
// publication number and a core flag. Publication numbers start at zero and
// must equal the line index. Core publications ("1" or "true") get weight 1,
// all others weight 0.
//
// A citation links file has three columns: the two publication numbers and
// the link weight. Lines must be sorted by the first and then the second
// publication number.
package fileio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gilchrisn/publication-classification/pkg/network"
)

const columnSeparator = "\t"

// ReadNetwork reads the citation network described by a publications file
// and a citation links file
func ReadNetwork(pubFile, citLinkFile string) (*network.Network, error) {
	pubWeights, err := ReadPublications(pubFile)
	if err != nil {
		return nil, fmt.Errorf("reading publications file: %w", err)
	}
	links, err := ReadCitationLinks(citLinkFile)
	if err != nil {
		return nil, fmt.Errorf("reading citation links file: %w", err)
	}

	if err := network.CheckSorted(links); err != nil {
		return nil, fmt.Errorf("citation links file: %w", err)
	}
	net, err := network.New(pubWeights, links)
	if err != nil {
		return nil, fmt.Errorf("creating citation network: %w", err)
	}
	return net, nil
}

// ReadPublications reads a publications file and returns the weight of each
// publication
func ReadPublications(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parsePublications(file)
}

func parsePublications(r io.Reader) ([]float64, error) {
	var weights []float64
	err := scanColumns(r, 2, func(lineNo int, columns []string) error {
		pubNo, err := parsePubNo(columns[0], lineNo)
		if err != nil {
			return err
		}
		if pubNo != lineNo-1 {
			return fmt.Errorf("lines must be sorted by the publication numbers in the first column (line %d)", lineNo)
		}
		weights = append(weights, coreWeight(columns[1]))
		return nil
	})
	return weights, err
}

// coreWeight gives core publications weight 1 and all others weight 0
func coreWeight(flag string) float64 {
	if flag == "1" || strings.EqualFold(flag, "true") {
		return 1
	}
	return 0
}

// ReadCitationLinks reads a citation links file
func ReadCitationLinks(path string) ([]network.Link, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseCitationLinks(file)
}

func parseCitationLinks(r io.Reader) ([]network.Link, error) {
	var links []network.Link
	err := scanColumns(r, 3, func(lineNo int, columns []string) error {
		from, err := parsePubNo(columns[0], lineNo)
		if err != nil {
			return err
		}
		to, err := parsePubNo(columns[1], lineNo)
		if err != nil {
			return err
		}
		weight, err := strconv.ParseFloat(columns[2], 64)
		if err != nil {
			return fmt.Errorf("citation link weight must be a number (line %d)", lineNo)
		}
		links = append(links, network.Link{From: from, To: to, Weight: weight})
		return nil
	})
	return links, err
}

func parsePubNo(s string, lineNo int) (int, error) {
	pubNo, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("publication numbers must be integers starting at zero (line %d)", lineNo)
	}
	return int(pubNo), nil
}

// scanColumns calls fn for every line of r split into exactly nColumns
// columns. Line numbers start at 1.
func scanColumns(r io.Reader, nColumns int, fn func(lineNo int, columns []string) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		columns := strings.Split(line, columnSeparator)
		if len(columns) != nColumns {
			return fmt.Errorf("incorrect number of columns (line %d)", lineNo)
		}
		if err := fn(lineNo, columns); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// WriteClassification writes one line per publication: the publication
// number followed by its cluster at each level. clusters[l][i] is the
// cluster of publication pubs[i] at level l.
func WriteClassification(path string, pubs []int, clusters [][]int) error {
	for l, levelClusters := range clusters {
		if len(levelClusters) != len(pubs) {
			return fmt.Errorf("level %d has %d cluster assignments for %d publications", l, len(levelClusters), len(pubs))
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating classification file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := writeRows(w, pubs, clusters); err != nil {
		file.Close()
		return fmt.Errorf("writing classification file: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing classification file: %w", err)
	}
	return file.Close()
}

func writeRows(w *bufio.Writer, pubs []int, clusters [][]int) error {
	for i, pub := range pubs {
		w.WriteString(strconv.Itoa(pub))
		for _, levelClusters := range clusters {
			w.WriteString(columnSeparator)
			w.WriteString(strconv.Itoa(levelClusters[i]))
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
