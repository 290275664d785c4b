package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// GAT format errors.
var (
	ErrInvalidGATMagic       = errors.New("invalid GAT magic: expected 'GRAT'")
	ErrUnsupportedGATVersion = errors.New("unsupported GAT version")
	ErrTruncatedGATData      = errors.New("truncated GAT data")
)

// GATVersion represents the GAT file version.
type GATVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v GATVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// GATCell is one terrain cell.
type GATCell struct {
	// Heights contains the altitude of each corner:
	// [0] = bottom-left, [1] = bottom-right, [2] = top-left, [3] = top-right
	Heights [4]float32
	Type    uint32 // Surface flags; not used for collision
}

// GAT is a ground altitude table: a grid of cells with per-corner altitudes.
// Altitudes grow downward.
type GAT struct {
	Version GATVersion
	Width   uint32
	Height  uint32
	Cells   []GATCell
}

// GetCell returns the cell at the given coordinates.
// Returns nil if coordinates are out of bounds.
func (g *GAT) GetCell(x, y int) *GATCell {
	if x < 0 || y < 0 || x >= int(g.Width) || y >= int(g.Height) {
		return nil
	}
	return &g.Cells[y*int(g.Width)+x]
}

// VertexHeights resolves the table into a (Width+1) x (Height+1) row-major grid
// of Y-up heights, scaled by scale. Corners shared by neighbouring cells are
// averaged.
func (g *GAT) VertexHeights(scale float32) (cols, rows int, heights []float32) {
	cols, rows = int(g.Width)+1, int(g.Height)+1
	sum := make([]float32, cols*rows)
	count := make([]uint8, cols*rows)

	add := func(x, y int, h float32) {
		i := y*cols + x
		sum[i] += h
		count[i]++
	}
	for y := 0; y < int(g.Height); y++ {
		for x := 0; x < int(g.Width); x++ {
			c := g.Cells[y*int(g.Width)+x]
			add(x, y, c.Heights[0])
			add(x+1, y, c.Heights[1])
			add(x, y+1, c.Heights[2])
			add(x+1, y+1, c.Heights[3])
		}
	}

	heights = make([]float32, cols*rows)
	for i := range heights {
		if count[i] > 0 {
			heights[i] = -sum[i] / float32(count[i]) * scale
		}
	}
	return cols, rows, heights
}

// AltitudeRange returns the minimum and maximum corner altitude.
func (g *GAT) AltitudeRange() (lo, hi float32) {
	if len(g.Cells) == 0 {
		return 0, 0
	}
	lo, hi = g.Cells[0].Heights[0], g.Cells[0].Heights[0]
	for _, cell := range g.Cells {
		for _, h := range cell.Heights {
			lo = min(lo, h)
			hi = max(hi, h)
		}
	}
	return lo, hi
}

// ParseGAT parses a GAT file from raw bytes.
func ParseGAT(data []byte) (*GAT, error) {
	if len(data) < 14 {
		return nil, ErrTruncatedGATData
	}

	// Check magic "GRAT"
	if string(data[0:4]) != "GRAT" {
		return nil, ErrInvalidGATMagic
	}

	// Version is stored as [minor, major]
	version := GATVersion{
		Major: data[5],
		Minor: data[4],
	}

	// Cell layout is identical for 1.x through 3.x
	if version.Major < 1 || version.Major > 3 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGATVersion, version)
	}

	width := binary.LittleEndian.Uint32(data[6:10])
	height := binary.LittleEndian.Uint32(data[10:14])
	if width == 0 || height == 0 || width > 4096 || height > 4096 {
		return nil, fmt.Errorf("invalid GAT dimensions: %dx%d", width, height)
	}

	cellCount := int(width * height)
	if need := 14 + cellCount*20; len(data) < need {
		return nil, fmt.Errorf("%w: need %d bytes for %dx%d cells, have %d",
			ErrTruncatedGATData, need, width, height, len(data))
	}

	gat := &GAT{
		Version: version,
		Width:   width,
		Height:  height,
		Cells:   make([]GATCell, cellCount),
	}
	if err := binary.Read(bytes.NewReader(data[14:]), binary.LittleEndian, gat.Cells); err != nil {
		return nil, fmt.Errorf("%w: reading cells: %v", ErrTruncatedGATData, err)
	}
	return gat, nil
}

// ParseGATFile parses a GAT file from disk.
func ParseGATFile(path string) (*GAT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GAT file: %w", err)
	}
	return ParseGAT(data)
}
