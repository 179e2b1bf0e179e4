package coefs

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxCells bounds (LMAX+1)²·NMAX so a corrupt header cannot request an
// unbounded allocation.
const maxCells = 1 << 24

var (
	// ErrTruncated is returned when the stream ends before the declared data.
	ErrTruncated = errors.New("coefs: truncated coefficient stream")
	// ErrInvalidHeader is returned for non-positive or oversized dimensions.
	ErrInvalidHeader = errors.New("coefs: invalid coefficient header")
)

// Header holds the dimensions that open a coefficient stream.
type Header struct {
	NumT int // number of time steps
	LMax int // maximum harmonic degree
	NMax int // number of radial orders
}

// Harmonics returns (LMax+1)², the number of harmonic rows per snapshot.
func (h Header) Harmonics() int { return (h.LMax + 1) * (h.LMax + 1) }

// Cells returns the number of coefficients per snapshot.
func (h Header) Cells() int { return h.Harmonics() * h.NMax }

func (h Header) validate() error {
	if h.NumT < 2 || h.LMax < 0 || h.NMax < 1 {
		return fmt.Errorf("%w: NUMT=%d LMAX=%d NMAX=%d", ErrInvalidHeader, h.NumT, h.LMax, h.NMax)
	}
	if h.LMax >= 1<<12 || h.Cells() > maxCells {
		return fmt.Errorf("%w: %d cells per snapshot exceeds %d", ErrInvalidHeader, h.Cells(), maxCells)
	}
	return nil
}

// Table is a decoded coefficient stream. Values is row-major
// [time][harmonic][radial].
type Table struct {
	Header
	Times  []float64
	Values []float64
}

// Snapshot returns the flat coefficients of time step i.
func (t *Table) Snapshot(i int) []float64 {
	n := t.Cells()
	return t.Values[i*n : (i+1)*n]
}

// Read reads a coefficient stream: int32 NUMT, LMAX, NMAX, then for each
// time step a float64 time followed by (LMAX+1)²·NMAX float64 coefficients.
// A nil order selects little-endian.
func Read(r io.Reader, order binary.ByteOrder) (*Table, error) {
	if order == nil {
		order = binary.LittleEndian
	}
	br := bufio.NewReader(r)

	var dims [3]int32
	if err := binary.Read(br, order, &dims); err != nil {
		return nil, truncated("header", err)
	}
	tab := &Table{Header: Header{NumT: int(dims[0]), LMax: int(dims[1]), NMax: int(dims[2])}}
	if err := tab.validate(); err != nil {
		return nil, err
	}

	// The header is untrusted until the records arrive, so preallocation is
	// capped and the slices grow as steps are read.
	cells := tab.Cells()
	prealloc := min(tab.NumT, maxPreallocSteps)
	tab.Times = make([]float64, 0, prealloc)
	tab.Values = make([]float64, 0, min(prealloc*cells, maxPreallocValues))
	scratch := make([]float64, min(cells, maxPreallocValues))
	for step := 0; step < tab.NumT; step++ {
		var t float64
		if err := binary.Read(br, order, &t); err != nil {
			return nil, truncated(fmt.Sprintf("time of step %d", step), err)
		}
		for off := 0; off < cells; off += len(scratch) {
			chunk := scratch[:min(len(scratch), cells-off)]
			if err := binary.Read(br, order, chunk); err != nil {
				return nil, truncated(fmt.Sprintf("coefficients of step %d", step), err)
			}
			tab.Values = append(tab.Values, chunk...)
		}
		tab.Times = append(tab.Times, t)
	}
	return tab, nil
}

// Bounds on the capacity Read reserves before any record has been read.
const (
	maxPreallocSteps  = 1 << 12
	maxPreallocValues = 1 << 20
)

func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return fmt.Errorf("coefs: reading %s: %w", what, err)
}

// Write writes tab in the layout consumed by Read. A nil order selects
// little-endian.
func Write(w io.Writer, order binary.ByteOrder, tab *Table) error {
	if order == nil {
		order = binary.LittleEndian
	}
	if err := tab.validate(); err != nil {
		return err
	}
	if len(tab.Times) != tab.NumT || len(tab.Values) != tab.NumT*tab.Cells() {
		return fmt.Errorf("coefs: table holds %d times and %d values, header wants %d and %d",
			len(tab.Times), len(tab.Values), tab.NumT, tab.NumT*tab.Cells())
	}

	bw := bufio.NewWriter(w)
	dims := [3]int32{int32(tab.NumT), int32(tab.LMax), int32(tab.NMax)}
	if err := binary.Write(bw, order, dims); err != nil {
		return fmt.Errorf("coefs: writing header: %w", err)
	}
	for i, t := range tab.Times {
		if err := binary.Write(bw, order, t); err != nil {
			return fmt.Errorf("coefs: writing time of step %d: %w", i, err)
		}
		if err := binary.Write(bw, order, tab.Snapshot(i)); err != nil {
			return fmt.Errorf("coefs: writing coefficients of step %d: %w", i, err)
		}
	}
	return bw.Flush()
}
