// Package kvcache - Forward Pass Operationen
//
// Dieses Modul enthaelt die Kernlogik fuer den Forward Pass:
// - StartForward: Prueft die Positionen und belegt Zellen
// - findLocs: Findet freie Cache-Positionen
// - buildMask: Erstellt die Attention-Maske
// - Mask: Attention-Maske des aktuellen Passes
package kvcache

import (
	"fmt"
	"math"
	"slices"

	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/ml"
)

func (c *Causal) StartForward(batch Batch) error {
	if len(batch.Positions) != len(batch.Sequences) {
		return fmt.Errorf("%w: %d positions for %d sequences", ErrInvalidBatch, len(batch.Positions), len(batch.Sequences))
	}

	if len(batch.Positions) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}

	if err := c.checkOrder(batch); err != nil {
		return err
	}

	locs, err := c.findLocs(len(batch.Positions))
	if err != nil {
		return err
	}

	// ab hier kann nichts mehr fehlschlagen
	c.curBatchSize = len(batch.Positions)
	c.curSequences = batch.Sequences
	c.curPositions = batch.Positions
	c.curCellRange = newRange()

	for i, pos := range batch.Positions {
		seq := batch.Sequences[i]
		loc := int(locs[i])

		c.cells[loc] = cacheCell{pos: pos, sequences: []int{seq}}

		seqRange, ok := c.cellRanges[seq]
		if !ok {
			seqRange = newRange()
		}

		seqRange.min = min(seqRange.min, loc)
		seqRange.max = max(seqRange.max, loc)
		c.cellRanges[seq] = seqRange
	}

	for _, seq := range slices.Compact(slices.Sorted(slices.Values(batch.Sequences))) {
		seqRange := c.cellRanges[seq]
		c.curCellRange.min = min(c.curCellRange.min, seqRange.min)
		c.curCellRange.max = max(c.curCellRange.max, seqRange.max)
	}

	c.curMask = c.buildMask()

	return nil
}

// checkOrder requires every position to come after what is already cached for
// its sequence and positions of one sequence to increase within the batch.
func (c *Causal) checkOrder(batch Batch) error {
	last := make(map[int]int32)
	for i, pos := range batch.Positions {
		seq := batch.Sequences[i]

		prev, ok := last[seq]
		if !ok {
			prev = c.Next(seq) - 1
		}

		if pos <= prev {
			return fmt.Errorf("%w: sequence %d position %d (last %d)", ErrOutOfOrder, seq, pos, prev)
		}

		last[seq] = pos
	}

	return nil
}

func newRange() cellRange {
	return cellRange{
		min: math.MaxInt,
		max: 0,
	}
}

// Returns a slice of locations where each token in the batch should be stored
func (c *Causal) findLocs(n int) ([]int32, error) {
	loc := make([]int32, 0, n)

	for i := range c.cells {
		if len(c.cells[i].sequences) == 0 {
			loc = append(loc, int32(i))
			if len(loc) >= n {
				return loc, nil
			}
		}
	}

	return nil, fmt.Errorf("%w (cache: %v batch: %v)", ErrKvCacheFull, len(c.cells), n)
}

// Builds a mask of batch x history indicating whether for each token in the batch the
// token in the history should apply. This is based on both the sequence and causality (the
// position of the history is not ahead of the token in the batch).
func (c *Causal) buildMask() []float32 {
	length := c.curCellRange.max - c.curCellRange.min + 1

	mask := make([]float32, c.curBatchSize*length)

	for i := range c.curBatchSize {
		for j := c.curCellRange.min; j <= c.curCellRange.max; j++ {
			if !slices.Contains(c.cells[j].sequences, c.curSequences[i]) ||
				c.cells[j].pos > c.curPositions[i] {
				mask[i*length+(j-c.curCellRange.min)] = float32(math.Inf(-1))
			}
		}
	}

	return mask
}

// Mask returns the attention mask of the current forward pass with shape
// [batch, history]. Masked cells hold -Inf.
func (c *Causal) Mask() *tensor.Dense {
	if c.curBatchSize == 0 {
		return nil
	}

	length := len(c.curMask) / c.curBatchSize
	return ml.FromFloats(slices.Clone(c.curMask), c.curBatchSize, length)
}

// Next returns the position following the last cached position of seq, or 0
// for an empty sequence.
func (c *Causal) Next(seq int) int32 {
	seqRange, ok := c.cellRanges[seq]
	if !ok {
		return 0
	}

	var last int32 = -1
	for i := seqRange.min; i <= seqRange.max; i++ {
		if slices.Contains(c.cells[i].sequences, seq) {
			last = max(last, c.cells[i].pos)
		}
	}

	return last + 1
}

// Len returns the number of cached positions of seq.
func (c *Causal) Len(seq int) int {
	seqRange, ok := c.cellRanges[seq]
	if !ok {
		return 0
	}

	var n int
	for i := seqRange.min; i <= seqRange.max; i++ {
		if slices.Contains(c.cells[i].sequences, seq) {
			n++
		}
	}

	return n
}
