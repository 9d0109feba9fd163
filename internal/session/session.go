// Package session tracks the per-chat conversation state machine. Each chat
// walks through group selection, payer selection, the secondary member's
// contribution, and finally the document upload; the store keeps that state
// explicit and injectable instead of hiding it in the transport layer.
package session

import (
	"sync"

	"github.com/shopspring/decimal"

	"kassabot/internal/models"
)

// State is a step of the intake conversation.
type State int

const (
	// StateWaitForGroup means the chat was just (re)started and the next
	// message selects the ledger group.
	StateWaitForGroup State = iota
	// StateWaitForPayer means the next message names who paid the receipt.
	StateWaitForPayer
	// StateWaitForSecondaryAmount means the next message gives the secondary
	// member's contribution, as an absolute amount or a percentage.
	StateWaitForSecondaryAmount
	// StateWaitForPDF means all parameters are collected and the next
	// document upload is processed.
	StateWaitForPDF
)

func (s State) String() string {
	switch s {
	case StateWaitForGroup:
		return "wait_for_group"
	case StateWaitForPayer:
		return "wait_for_payer"
	case StateWaitForSecondaryAmount:
		return "wait_for_secondary_amount"
	case StateWaitForPDF:
		return "wait_for_pdf"
	default:
		return "unknown"
	}
}

// Session is the conversation state of one chat. SecondaryAmount holds the
// secondary member's absolute contribution when one was given; the
// percentage it implies depends on the receipt total and is derived later.
type Session struct {
	ChatID                   int64
	State                    State
	Group                    models.Group
	PayerName                string
	SecondaryAmount          *decimal.Decimal
	SecondaryContributionPct decimal.Decimal
}

// Store holds sessions by chat. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the chat's session, creating one at StateWaitForGroup if the
// chat is new. The returned copy is detached; call Save to persist changes.
func (s *Store) Get(chatID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[chatID]; ok {
		return *existing
	}
	created := &Session{ChatID: chatID, State: StateWaitForGroup}
	s.sessions[chatID] = created
	return *created
}

// Save stores the session under its chat id.
func (s *Store) Save(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := session
	s.sessions[session.ChatID] = &stored
}

// Reset discards the chat's state, returning it to StateWaitForGroup on the
// next Get.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}
