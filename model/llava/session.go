package llava

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"github.com/sis-k/executorch/kvcache"
)

// Phase of a decode session
type Phase int

const (
	PhasePrefill Phase = iota
	PhaseDecode
)

func (p Phase) String() string {
	switch p {
	case PhasePrefill:
		return "prefill"
	case PhaseDecode:
		return "decode"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// the cache of a session only ever holds one sequence
const sessionSeq = 0

// Session is one conversation. It owns its cache and checks the positions
// the caller passes in. Sessions must not share a cache.
type Session struct {
	ID string

	model *Model

	mu    sync.Mutex
	cache *kvcache.Causal
	phase Phase
}

// NewSession returns a session with a cache of m.MaxSeqLen positions.
func (m *Model) NewSession() *Session {
	cache := kvcache.NewCausalCache()
	cache.Init(1, m.MaxSeqLen)

	return &Session{
		ID:    uuid.NewString(),
		model: m,
		cache: cache,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Next returns the position the following Step must use.
func (s *Session) Next() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Next(sessionSeq)
}

// Prefill consumes the whole prompt at position 0. It returns the number of
// positions consumed, which is the position of the first Step.
func (s *Session) Prefill(ctx context.Context, pre []int32, img *tensor.Dense, post []int32) (int, *tensor.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePrefill {
		return 0, nil, ErrAlreadyPrefilled
	}

	embeds, err := s.model.PrefillEmbedding(ctx, pre, img, post)
	if err != nil {
		return 0, nil, err
	}

	n := embeds.Shape()[1]
	logits, err := s.forward(ctx, 0, n, embeds)
	if err != nil {
		return 0, nil, err
	}

	s.phase = PhaseDecode
	slog.Debug("prefill", "session", s.ID, "length", n)
	return n, logits, nil
}

// Step decodes one token at pos. pos must equal Next.
func (s *Session) Step(ctx context.Context, token int32, pos int32) (*tensor.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseDecode {
		return nil, ErrNotPrefilled
	}

	if next := s.cache.Next(sessionSeq); pos != next {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPositionMismatch, pos, next)
	}

	embeds, err := s.model.Embedder.Embed(ctx, []int32{token})
	if err != nil {
		return nil, err
	}

	return s.forward(ctx, pos, 1, embeds)
}

// forward reserves n cache cells starting at pos and runs the decoder. The
// cells are released again if the decoder fails.
func (s *Session) forward(ctx context.Context, pos int32, n int, embeds *tensor.Dense) (*tensor.Dense, error) {
	batch := kvcache.Batch{
		Positions: make([]int32, n),
		Sequences: make([]int, n),
	}
	for i := range n {
		batch.Positions[i] = pos + int32(i)
		batch.Sequences[i] = sessionSeq
	}

	if err := s.cache.StartForward(batch); err != nil {
		return nil, err
	}

	logits, err := s.model.Decoder.Forward(ctx, nil, ForwardOptions{InputPos: pos, Mask: s.cache.Mask()}, embeds)
	if err != nil {
		if rerr := s.cache.Remove(sessionSeq, pos, math.MaxInt32); rerr != nil {
			slog.Warn("failed to roll back kv cache", "session", s.ID, "error", rerr)
		}
		return nil, err
	}

	return logits, nil
}

// Rewind drops every cached position from pos on so decoding continues at
// pos. pos may not lie beyond Next. Rewinding to 0 returns to the prefill
// phase.
func (s *Session) Rewind(pos int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.CanResume(sessionSeq, pos) {
		return fmt.Errorf("%w: cannot rewind to %d, next is %d", ErrPositionMismatch, pos, s.cache.Next(sessionSeq))
	}

	if err := s.cache.Remove(sessionSeq, pos, math.MaxInt32); err != nil {
		return err
	}

	if pos == 0 {
		s.phase = PhasePrefill
	}
	return nil
}

// Reset clears the cache and returns to the prefill phase.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Reset()
	s.phase = PhasePrefill
}

// Close releases the cache.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Close()
}
