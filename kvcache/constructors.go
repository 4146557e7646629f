// Package kvcache - Konstruktoren und Initialisierung
//
// Dieses Modul enthaelt:
// - NewCausalCache: Standard-Cache
// - Init: Zellen fuer maxSequences x capacity Positionen anlegen
// - Reset/Close: Verwaltung
package kvcache

import (
	"fmt"
)

func NewCausalCache() *Causal {
	return &Causal{
		cellRanges: make(map[int]cellRange),
	}
}

// Init allocates room for maxSequences sequences of up to capacity
// positions each.
func (c *Causal) Init(maxSequences, capacity int) {
	if maxSequences <= 0 || capacity <= 0 {
		panic(fmt.Errorf("kv cache needs at least one sequence and one slot (sequences %v, capacity %v)", maxSequences, capacity))
	}

	c.cells = make([]cacheCell, maxSequences*capacity)
	c.cellRanges = make(map[int]cellRange)
	c.curCellRange = newRange()
}

// Reset forgets every cached position.
func (c *Causal) Reset() {
	clear(c.cells)
	clear(c.cellRanges)
	c.curBatchSize = 0
	c.curMask = nil
	c.curSequences = nil
	c.curPositions = nil
}

func (c *Causal) Close() {
	c.Reset()
	c.cells = nil
}
