// Package kvcache - Typen und Datenstrukturen
//
// Dieses Modul enthaelt die Buchhaltung des kausalen KV-Caches:
// welche Zelle welche Position welcher Sequenz haelt. Die eigentlichen
// Key/Value-Tensoren liegen im Decoder, der Cache liefert Zellen und Maske.
package kvcache

import (
	"errors"
)

var (
	ErrKvCacheFull  = errors.New("could not find a kv cache slot")
	ErrOutOfOrder   = errors.New("position is not after the last cached position")
	ErrInvalidBatch = errors.New("invalid batch")
)

// Batch describes the tokens of one forward pass. Positions[i] belongs to
// sequence Sequences[i].
type Batch struct {
	Positions []int32
	Sequences []int
}

// Causal cache tracks the positions stored for each sequence and builds the
// mask for attending to past tokens.
//
// The mask is of shape batch size, history size
type Causal struct {
	// ** current forward pass **

	// size of the current batch
	curBatchSize int

	// mask of the cache as used by this batch
	curMask []float32

	// locations in the cache that are needed for this batch
	curCellRange cellRange

	// curSequences is the sequences corresponding to this pass's entries in the cache
	curSequences []int

	// curPositions is the positions corresponding to this pass's entries in the cache
	curPositions []int32

	// ** cache metadata **

	// for each possible location in the cache, stores the position and set of sequences
	// that reference the data there
	cells []cacheCell

	// maps from sequence to the range of locations where it is stored in the cache
	cellRanges map[int]cellRange
}

type cacheCell struct {
	pos       int32
	sequences []int
}

type cellRange struct {
	min int
	max int
}
