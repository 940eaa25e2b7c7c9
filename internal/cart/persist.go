package cart

import (
	"context"

	"go.uber.org/zap"
)

// schedulePersistLocked records the latest snapshot and makes sure a flusher is
// running. Only one flusher runs per store, so saves land in mutation order and
// intermediate snapshots are coalesced.
func (s *Store) schedulePersistLocked() {
	if s.persister == nil || s.closed {
		return
	}
	snap := s.cart.Clone()
	s.pending = &snap
	if s.flushing {
		return
	}
	s.flushing = true
	s.wg.Add(1)
	go s.flush()
}

func (s *Store) flush() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		if snap == nil || s.closed {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		err := s.persister.SaveCart(context.Background(), *snap)

		s.mu.Lock()
		if !s.closed {
			if err != nil {
				s.logger.Warn("cart persist failed",
					zap.String("requester_id", snap.RequesterID),
					zap.Int("lines", len(snap.Lines)),
					zap.Error(err))
			}
			s.syncErr = err
		}
		s.mu.Unlock()
	}
}
