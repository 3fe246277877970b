package terrain

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OCAP2/awacs/pkg/core"
)

// LoadFile reads an ESRI ASCII grid from path.
func LoadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open terrain file: %w", err)
	}
	defer f.Close()
	return ReadASCII(f)
}

// ReadASCII parses an ESRI ASCII grid. Rows in the file run north to south;
// NODATA posts become height 0. Cell-centre registration is shifted by half a
// cell so posts line up with the corner convention.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("missing value for header %q", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing header %q: %w", key, err)
		}
		header[key] = v
	}

	cols, rows := int(header["ncols"]), int(header["nrows"])
	cell := header["cellsize"]
	origin := core.Position2D{X: header["xllcorner"], Y: header["yllcorner"]}
	if x, ok := header["xllcenter"]; ok {
		origin.X = x - cell/2
	}
	if y, ok := header["yllcenter"]; ok {
		origin.Y = y - cell/2
	}
	noData, hasNoData := header["nodata_value"]

	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", cols, rows)
	}

	heights := make([]float64, cols*rows)
	n := 0
	put := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("error parsing height %d: %w", n, err)
		}
		if hasNoData && v == noData {
			v = 0
		}
		if n >= len(heights) {
			return fmt.Errorf("more than %d heights", len(heights))
		}
		// File row 0 is the northern edge; store southernmost first.
		row, col := rows-1-n/cols, n%cols
		heights[row*cols+col] = v
		n++
		return nil
	}

	if first != "" {
		if err := put(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := put(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading terrain: %w", err)
	}
	if n != len(heights) {
		return nil, fmt.Errorf("expected %d heights, got %d", len(heights), n)
	}

	return NewGrid(origin, cell, cols, rows, heights)
}
