// Package session remembers per-chat state between updates.
package session

import (
	"sync"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

// MaxBoards bounds how many vote boards are remembered per chat. Taps on
// older boards are treated as unknown.
const MaxBoards = 20

type board struct {
	messageID int
	contest   domain.ContestKey
}

type Session struct {
	// boards maps sent movie-list messages to the contest their vote
	// buttons belong to, oldest first.
	boards []board
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
	}
}

// BindBoard records that the vote buttons on messageID belong to contest.
func (m *Manager) BindBoard(chatID int64, messageID int, contest domain.ContestKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[chatID]
	if s == nil {
		s = &Session{}
		m.sessions[chatID] = s
	}
	for i := range s.boards {
		if s.boards[i].messageID == messageID {
			s.boards[i].contest = contest
			return
		}
	}
	s.boards = append(s.boards, board{messageID: messageID, contest: contest})
	if len(s.boards) > MaxBoards {
		s.boards = s.boards[len(s.boards)-MaxBoards:]
	}
}

// Board returns the contest bound to messageID.
func (m *Manager) Board(chatID int64, messageID int) (domain.ContestKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.sessions[chatID]
	if s == nil {
		return domain.ContestKey{}, false
	}
	for _, b := range s.boards {
		if b.messageID == messageID {
			return b.contest, true
		}
	}
	return domain.ContestKey{}, false
}

// ForgetBoard drops a board whose buttons can no longer take votes.
func (m *Manager) ForgetBoard(chatID int64, messageID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[chatID]
	if s == nil {
		return
	}
	for i, b := range s.boards {
		if b.messageID == messageID {
			s.boards = append(s.boards[:i], s.boards[i+1:]...)
			break
		}
	}
	if len(s.boards) == 0 {
		delete(m.sessions, chatID)
	}
}
