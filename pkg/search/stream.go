package search

import (
	"context"
	"errors"
	"sync"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

// emitFunc hands one accepted candidate to the stream consumer. It
// returns false when the consumer is gone and the producer should stop.
type emitFunc func(rule *graph.CandidateRule) bool

// ruleStream runs a producer goroutine and exposes its output as a
// pull-based Stream. The producer stops when its context is cancelled,
// which happens on Close and when a Next caller's context is done.
type ruleStream struct {
	ch     chan *graph.CandidateRule
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

var _ Stream = (*ruleStream)(nil)

// newStream starts produce in its own goroutine. The producer's error is
// surfaced through Err; context cancellation is a clean stop, not an
// error.
func newStream(parent context.Context, produce func(ctx context.Context, emit emitFunc) error) *ruleStream {
	ctx, cancel := context.WithCancel(parent)
	s := &ruleStream{
		ch:     make(chan *graph.CandidateRule),
		cancel: cancel,
	}
	emit := func(rule *graph.CandidateRule) bool {
		select {
		case s.ch <- rule:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(s.ch)
		if err := produce(ctx, emit); err != nil && !errors.Is(err, context.Canceled) {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	return s
}

// Next implements Stream.
func (s *ruleStream) Next(ctx context.Context) (*graph.CandidateRule, bool) {
	select {
	case rule, ok := <-s.ch:
		if !ok {
			return nil, false
		}
		return rule, true
	case <-ctx.Done():
		s.cancel()
		return nil, false
	}
}

// Err implements Stream.
func (s *ruleStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements Stream.
func (s *ruleStream) Close() {
	s.cancel()
}

// Collect drains a stream into a slice. Intended for callers that want
// every result and for tests; long searches should consume Next directly.
func Collect(ctx context.Context, s Stream) ([]*graph.CandidateRule, error) {
	var rules []*graph.CandidateRule
	for {
		rule, ok := s.Next(ctx)
		if !ok {
			break
		}
		rules = append(rules, rule)
	}
	if err := s.Err(); err != nil {
		return rules, err
	}
	return rules, ctx.Err()
}
