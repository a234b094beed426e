package state

// AdjustDifficulty retargets the difficulty when the chain length reaches
// the next retarget point and returns the current difficulty. Calling it
// more than once at the same chain length changes nothing.
func (s *State) AdjustDifficulty() uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.adjustDifficulty()
}

// adjustDifficulty does the work of AdjustDifficulty. The caller must hold
// the lock.
func (s *State) adjustDifficulty() uint {
	period := int(s.genesis.AdjustDifficultyBlocks)
	length := s.db.Len()

	if length%period != 1 || length <= period || length == s.retargetHeight {
		return s.difficulty
	}
	s.retargetHeight = length

	tip, err := s.db.GetBlock(length - 1)
	if err != nil {
		return s.difficulty
	}
	start, err := s.db.GetBlock(length - 1 - period)
	if err != nil {
		return s.difficulty
	}

	// The span is compared against the target span so a fractional average
	// is never rounded.
	span := tip.Timestamp - start.Timestamp
	avg := float64(span) / float64(period)

	switch {
	case span > s.genesis.BlockTime*int64(period):
		if s.difficulty > 1 {
			s.difficulty--
		}
	default:
		s.difficulty++
	}

	s.evHandler("state: adjustDifficulty: length[%d]: avg block time[%.2fs]: target[%ds]: difficulty[%d]", length, avg, s.genesis.BlockTime, s.difficulty)

	return s.difficulty
}
