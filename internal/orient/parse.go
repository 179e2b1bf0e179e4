package orient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/star/expseries/internal/workers"
)

// maxPreallocRecords caps the capacity reserved from the declared sample
// count; the count itself is checked against the rows actually read.
const maxPreallocRecords = 1 << 16

// ErrParse is returned for malformed orientation tables.
var ErrParse = errors.New("orient: malformed orientation data")

// Parse reads an orientation table from r. The first non-blank line holds
// the sample count; each following non-blank line holds t x y z, plus
// u v w when hasVelocity is set. Blank lines are ignored.
func Parse(r io.Reader, hasVelocity bool) ([]Record, error) {
	columns := 4
	if hasVelocity {
		columns = 7
	}

	scanner := bufio.NewScanner(r)
	var (
		records []Record
		numT    = -1
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if numT < 0 {
			n, err := strconv.Atoi(fields[0])
			if err != nil || len(fields) != 1 {
				return nil, fmt.Errorf("%w: line %d: invalid sample count %q", ErrParse, lineNo, scanner.Text())
			}
			if n < 2 {
				return nil, fmt.Errorf("%w: line %d: sample count %d, need at least 2", ErrParse, lineNo, n)
			}
			numT = n
			records = make([]Record, 0, min(n, maxPreallocRecords))
			continue
		}

		if len(fields) != columns {
			return nil, fmt.Errorf("%w: line %d: got %d columns, want %d", ErrParse, lineNo, len(fields), columns)
		}
		var vals [7]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %v", ErrParse, lineNo, i+1, err)
			}
			vals[i] = v
		}

		rec := Record{
			T:   vals[0],
			Pos: [3]float64{vals[1], vals[2], vals[3]},
		}
		if hasVelocity {
			rec.Vel = [3]float64{vals[4], vals[5], vals[6]}
		}
		if len(records) > 0 && !(rec.T > records[len(records)-1].T) {
			return nil, fmt.Errorf("%w: line %d: time %g does not increase", ErrParse, lineNo, rec.T)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading orientation data: %w", err)
	}

	if numT < 0 {
		return nil, fmt.Errorf("%w: missing sample count", ErrParse)
	}
	if len(records) != numT {
		return nil, fmt.Errorf("%w: header declares %d samples, found %d", ErrParse, numT, len(records))
	}
	return records, nil
}

// Load parses an orientation table from r and builds a Series.
func Load(ctx context.Context, r io.Reader, cfg Config, logger *slog.Logger, pool *workers.Pool) (*Series, error) {
	records, err := Parse(r, cfg.HasVelocity)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(cfg, logger)
	for _, rec := range records {
		b.Add(rec)
	}
	return b.Build(ctx, pool)
}
