package telegram

import "sync"

// activeSessions remembers the session each chat is talking in. A chat with
// no entry starts a new session on its next turn.
type activeSessions struct {
	mu sync.Mutex
	m  map[int64]string
}

func newActiveSessions() *activeSessions {
	return &activeSessions{m: make(map[int64]string)}
}

func (a *activeSessions) Get(chatID int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m[chatID]
}

func (a *activeSessions) Set(chatID int64, sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[chatID] = sessionID
}

func (a *activeSessions) Clear(chatID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, chatID)
}

// ClearSession forgets sessionID in every chat that had it active.
func (a *activeSessions) ClearSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for chatID, id := range a.m {
		if id == sessionID {
			delete(a.m, chatID)
		}
	}
}
