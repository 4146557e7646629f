// Package kvcache - Sequenz-Operationen
//
// Dieses Modul verwaltet Sequenz-bezogene Operationen:
// - CanResume: Prueft ob eine Sequenz fortgesetzt werden kann
// - Remove: Entfernt Tokens aus einer Sequenz und verschiebt die folgenden
package kvcache

import (
	"errors"
	"math"
	"slices"
)

// CanResume reports whether decoding seq can continue at pos, i.e. every
// earlier position is still cached.
func (c *Causal) CanResume(seq int, pos int32) bool {
	return pos >= 0 && pos <= c.Next(seq)
}

// Remove drops positions [beginIndex, endIndex) of seq. Later positions move
// down to close the gap. Pass math.MaxInt32 as endIndex to truncate.
func (c *Causal) Remove(seq int, beginIndex, endIndex int32) error {
	var offset int32
	if endIndex != math.MaxInt32 {
		offset = beginIndex - endIndex
	}

	// validate before modifying anything
	for i := range c.cells {
		if slices.Contains(c.cells[i].sequences, seq) && c.cells[i].pos >= endIndex && offset != 0 &&
			slices.ContainsFunc(c.cells[i].sequences, func(s int) bool { return s != seq }) {
			return errors.New("shifting cells shared by multiple sequences not supported")
		}
	}

	seqRange := newRange()

	for i := range c.cells {
		if slices.Contains(c.cells[i].sequences, seq) {
			if c.cells[i].pos >= beginIndex && c.cells[i].pos < endIndex {
				c.cells[i].sequences = slices.DeleteFunc(c.cells[i].sequences, func(s int) bool { return s == seq })
			} else {
				if c.cells[i].pos >= endIndex {
					c.cells[i].pos += offset
				}
				seqRange.min = min(seqRange.min, i)
				seqRange.max = max(seqRange.max, i)
			}
		}
	}

	if seqRange == newRange() {
		delete(c.cellRanges, seq)
		return nil
	}

	c.cellRanges[seq] = seqRange
	return nil
}
