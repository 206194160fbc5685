package session

// CreatePlaceholder registers a waiting placeholder entry. The animation
// loop owns the message until Waiting flips false.
func (s *Session) CreatePlaceholder(matchingID, messageID, channelID string) {
	s.mu.Lock()
	s.placeholders[matchingID] = &Placeholder{
		MatchingID: matchingID,
		MessageID:  messageID,
		ChannelID:  channelID,
		Waiting:    true,
	}
	s.mu.Unlock()
}

// Placeholder returns a snapshot of the entry.
func (s *Session) Placeholder(matchingID string) (Placeholder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.placeholders[matchingID]
	if !ok {
		return Placeholder{}, false
	}
	return *entry, true
}

// ReleasePlaceholder asks the animation loop to stop on its next tick.
// Reports whether the entry existed.
func (s *Session) ReleasePlaceholder(matchingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.placeholders[matchingID]
	if !ok {
		return false
	}
	entry.Released = true
	return true
}

// FinishPlaceholder is called by the animation loop on its exit path: the
// loop no longer owns the message and the entry is removed. Every exit
// route must end here or the execution poller would never terminate.
func (s *Session) FinishPlaceholder(matchingID string) {
	s.mu.Lock()
	if entry, ok := s.placeholders[matchingID]; ok {
		entry.Waiting = false
	}
	delete(s.placeholders, matchingID)
	s.mu.Unlock()
}

// PlaceholderWaiting reports whether the animation loop still owns the
// message. Missing entries are not waiting.
func (s *Session) PlaceholderWaiting(matchingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.placeholders[matchingID]
	return ok && entry.Waiting
}

func (s *Session) PlaceholderExists(matchingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.placeholders[matchingID]
	return ok
}

// CreateExecution registers an execution match entry.
func (s *Session) CreateExecution(entry ExecutionMatch) {
	s.mu.Lock()
	copied := entry
	s.executions[entry.ExecutionID] = &copied
	s.mu.Unlock()
}

func (s *Session) Execution(executionID string) (ExecutionMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.executions[executionID]
	if !ok {
		return ExecutionMatch{}, false
	}
	return *entry, true
}

func (s *Session) DeleteExecution(executionID string) {
	s.mu.Lock()
	delete(s.executions, executionID)
	s.mu.Unlock()
}

// SetPromptResponse fills the response slot for a prompt message. The
// timed prompt loop resolves as soon as it observes a non-empty slot.
func (s *Session) SetPromptResponse(messageID string, resp PromptResponse) {
	s.mu.Lock()
	s.prompts[messageID] = resp
	s.mu.Unlock()
}

// TakePromptResponse removes and returns the slot, if filled.
func (s *Session) TakePromptResponse(messageID string) (PromptResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.prompts[messageID]
	if ok {
		delete(s.prompts, messageID)
	}
	return resp, ok
}

// PromptResponsePending reports whether a response has arrived without
// consuming it.
func (s *Session) PromptResponsePending(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.prompts[messageID]
	return ok
}
