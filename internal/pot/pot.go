// Package pot implements the pick-offset table: the static, symmetric
// matrix of expected pairwise arrival-time offsets a candidate's members
// must remain consistent with.
package pot

import "math"

// Table is a symmetric NxN matrix of expected pairwise offsets between
// registered processors, indexed by position, plus an enabled mask. Only
// the upper triangle is stored; offset(j,i) is assumed to be -offset(i,j).
type Table struct {
	processorIDs []string
	index        map[string]int
	// offsets[i][j] for i < j holds the expected pick.time[j] - pick.time[i].
	offsets [][]float64
	enabled []bool
}

// Build recreates a Table from scratch given the processor ids (in stable
// order) and each processor's template pick time. This mirrors the
// source's naive full-recreation strategy: processorCount is small and
// changes are rare, so incremental maintenance isn't worth the complexity.
func Build(processorIDs []string, pickTime map[string]float64) *Table {
	n := len(processorIDs)
	t := &Table{
		processorIDs: append([]string(nil), processorIDs...),
		index:        make(map[string]int, n),
		offsets:      make([][]float64, n),
		enabled:      make([]bool, n),
	}
	for i, id := range processorIDs {
		t.index[id] = i
		t.enabled[i] = true
		t.offsets[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			offset := pickTime[processorIDs[j]] - pickTime[processorIDs[i]]
			t.offsets[i][j] = offset
		}
	}
	return t
}

// Offset returns the expected offset pick.time[j] - pick.time[i] for two
// registered processor ids, and whether both are known to the table.
func (t *Table) Offset(i, j string) (float64, bool) {
	ii, ok1 := t.index[i]
	jj, ok2 := t.index[j]
	if !ok1 || !ok2 {
		return 0, false
	}
	if ii == jj {
		return 0, true
	}
	if ii < jj {
		return t.offsets[ii][jj], true
	}
	return -t.offsets[jj][ii], true
}

// Projection is a subset of a Table's processors, masking everyone outside
// the subset as disabled, used to validate one candidate's members.
type Projection struct {
	table   *Table
	enabled map[string]bool
}

// NewProjection builds a projection of table including exactly the given
// processor ids as enabled; all others are masked disabled.
func (t *Table) NewProjection(processorIDs []string) *Projection {
	enabled := make(map[string]bool, len(processorIDs))
	for _, id := range processorIDs {
		enabled[id] = true
	}
	return &Projection{table: t, enabled: enabled}
}

// Validate reports whether every pair of enabled processors in the
// projection has an observed offset within tolerance of the table's
// expected offset. observedPickTime maps processor id -> observed absolute
// pick time (seconds). The check is O(k^2) over the enabled set and
// short-circuits on the first violation.
//
// potDisabled turns the check off: Validate always returns true in that
// case. A tolerance of 0 accepts only exact offset matches.
func (p *Projection) Validate(observedPickTime map[string]float64, tolerance float64, potDisabled bool) bool {
	if potDisabled {
		return true
	}

	ids := make([]string, 0, len(p.enabled))
	for id, on := range p.enabled {
		if on {
			ids = append(ids, id)
		}
	}

	for a := 0; a < len(ids); a++ {
		for b := a + 1; b < len(ids); b++ {
			i, j := ids[a], ids[b]
			expected, ok := p.table.Offset(i, j)
			if !ok {
				continue
			}
			observed := observedPickTime[j] - observedPickTime[i]
			if math.Abs(observed-expected) > tolerance {
				return false
			}
		}
	}
	return true
}
