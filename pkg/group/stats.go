package group

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// Mean returns the arithmetic mean of the Number cells at rows.
// ok is false when none of them is a Number.
func Mean(cells []model.Cell, rows []int) (float64, bool) {
	values := numbersAt(cells, rows)
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// Mode returns the most frequent non-Missing cell at rows. Ties go to the
// smallest number; among text values to the lexically smallest; numbers
// rank before text. ok is false when every cell is Missing.
func Mode(cells []model.Cell, rows []int) (model.Cell, bool) {
	counts := make(map[model.Cell]int)
	for _, r := range rows {
		c := cells[r]
		if c.IsMissing() {
			continue
		}
		counts[c]++
	}
	if len(counts) == 0 {
		return model.Missing(), false
	}

	candidates := make([]model.Cell, 0, len(counts))
	best := 0
	for c, n := range counts {
		switch {
		case n > best:
			best = n
			candidates = append(candidates[:0], c)
		case n == best:
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		return less(candidates[a], candidates[b])
	})
	return candidates[0], true
}

func less(a, b model.Cell) bool {
	af, aNum := a.AsNumber()
	bf, bNum := b.AsNumber()
	switch {
	case aNum && bNum:
		return af < bf
	case aNum != bNum:
		return aNum
	default:
		as, _ := a.AsText()
		bs, _ := b.AsText()
		return as < bs
	}
}

func numbersAt(cells []model.Cell, rows []int) []float64 {
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := cells[r].AsNumber(); ok {
			values = append(values, f)
		}
	}
	return values
}

// StatKind selects a cached per-group statistic
type StatKind int

const (
	StatMean StatKind = iota
	StatMode
)

type statEntry struct {
	value model.Cell
	ok    bool
}

// StatCache computes per-group statistics of one column lazily and caches
// them. A cache belongs to a single stage invocation over a column; it is
// not safe for concurrent use.
type StatCache struct {
	idx   *Index
	cells []model.Cell
	cache map[StatKind]map[Key]statEntry
}

// NewStatCache creates a cache over a snapshot of cells. The cells are
// copied so later writes to the column do not change cached statistics.
func NewStatCache(idx *Index, cells []model.Cell) *StatCache {
	snapshot := make([]model.Cell, len(cells))
	copy(snapshot, cells)
	return &StatCache{
		idx:   idx,
		cells: snapshot,
		cache: make(map[StatKind]map[Key]statEntry),
	}
}

// Mean returns the cached group mean; ok is false when undefined
func (s *StatCache) Mean(k Key) (float64, bool) {
	c, ok := s.get(StatMean, k)
	if !ok {
		return 0, false
	}
	f, _ := c.AsNumber()
	return f, true
}

// Mode returns the cached group mode; ok is false when undefined
func (s *StatCache) Mode(k Key) (model.Cell, bool) {
	return s.get(StatMode, k)
}

func (s *StatCache) get(kind StatKind, k Key) (model.Cell, bool) {
	byKey, ok := s.cache[kind]
	if !ok {
		byKey = make(map[Key]statEntry)
		s.cache[kind] = byKey
	}
	if e, hit := byKey[k]; hit {
		return e.value, e.ok
	}

	var e statEntry
	rows := s.idx.Rows(k)
	switch kind {
	case StatMean:
		if f, ok := Mean(s.cells, rows); ok {
			e = statEntry{value: model.Number(f), ok: true}
		}
	case StatMode:
		e.value, e.ok = Mode(s.cells, rows)
	}
	byKey[k] = e
	return e.value, e.ok
}
