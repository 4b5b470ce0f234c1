package main

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/Veraticus/sessionguard/pkg/activity"
	"github.com/Veraticus/sessionguard/pkg/delivery"
	"github.com/Veraticus/sessionguard/pkg/inactivity"
)

// lockCommandTimeout bounds how long a configured lock command may run.
const lockCommandTimeout = 10 * time.Second

// Locker shows the lock state to the user.
type Locker interface {
	SetLocked(locked bool)
}

// Enqueuer accepts outbound notifications.
type Enqueuer interface {
	Enqueue(item delivery.Item) error
}

// TokenClearer drops the backend credential.
type TokenClearer interface {
	ClearToken()
}

// Resetter forgets cached inbox state.
type Resetter interface {
	Reset()
}

// Stopper terminates the wrapped child.
type Stopper interface {
	Stop() error
}

// CommandRunner runs a shell command line.
type CommandRunner func(ctx context.Context, command string) error

func shellRunner(ctx context.Context, command string) error {
	return exec.CommandContext(ctx, "/bin/sh", "-c", command).Run()
}

// Session carries out what the inactivity monitor decides. The monitor keeps
// firing every tick while the user stays idle, so each action only happens
// once per idle period and any activity signal re-arms them.
type Session struct {
	locker      Locker
	queue       Enqueuer
	tokens      TokenClearer
	inbox       Resetter
	child       Stopper
	lockCommand func() string
	run         CommandRunner
	icon        func() string
	logger      *slog.Logger

	mu        sync.Mutex
	locked    bool
	expired   bool
	loggedOut bool
}

var _ inactivity.Session = (*Session)(nil)

// SessionDeps are the collaborators a Session acts on. Any of them may be
// nil.
type SessionDeps struct {
	Locker      Locker
	Queue       Enqueuer
	Tokens      TokenClearer
	Inbox       Resetter
	Child       Stopper
	LockCommand func() string
	Icon        func() string
	Run         CommandRunner
	Logger      *slog.Logger
}

// NewSession creates an unlocked session.
func NewSession(deps SessionDeps) *Session {
	s := &Session{
		locker:      deps.Locker,
		queue:       deps.Queue,
		tokens:      deps.Tokens,
		inbox:       deps.Inbox,
		child:       deps.Child,
		lockCommand: deps.LockCommand,
		icon:        deps.Icon,
		run:         deps.Run,
		logger:      deps.Logger,
	}
	if s.run == nil {
		s.run = shellRunner
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Lock marks the session locked, notifies and runs the lock command.
func (s *Session) Lock() {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return
	}
	s.locked = true
	s.mu.Unlock()

	s.logger.Info("session locked")
	if s.locker != nil {
		s.locker.SetLocked(true)
	}
	s.notify("Session locked", "Locked after a period of inactivity")

	if s.lockCommand == nil {
		return
	}
	cmd := s.lockCommand()
	if cmd == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), lockCommandTimeout)
	defer cancel()
	if err := s.run(ctx, cmd); err != nil {
		s.logger.Error("lock command failed", "command", cmd, "error", err)
	}
}

// Timeout announces that the session expired.
func (s *Session) Timeout() {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	s.mu.Unlock()

	s.logger.Warn("session expired")
	s.notify("Session expired", "Signed out after a long period of inactivity")
}

// Logout drops the credential and stops the wrapped client.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.loggedOut {
		s.mu.Unlock()
		return
	}
	s.loggedOut = true
	s.mu.Unlock()

	if s.tokens != nil {
		s.tokens.ClearToken()
	}
	if s.inbox != nil {
		s.inbox.Reset()
	}
	if s.child != nil {
		if err := s.child.Stop(); err != nil {
			s.logger.Error("stop child on logout", "error", err)
		}
	}
	s.logger.Info("logged out")
}

// HandleActivity unlocks the session. It is subscribed to every activity
// kind.
func (s *Session) HandleActivity(kind activity.Kind) {
	s.mu.Lock()
	wasLocked := s.locked
	s.locked = false
	s.expired = false
	s.mu.Unlock()

	if !wasLocked {
		return
	}
	s.logger.Info("session unlocked", "kind", kind.String())
	if s.locker != nil {
		s.locker.SetLocked(false)
	}
}

// Locked reports whether the session is currently locked.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// LoggedOut reports whether Logout already ran.
func (s *Session) LoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOut
}

func (s *Session) notify(title, body string) {
	if s.queue == nil {
		return
	}
	item := delivery.Item{Title: title, Body: body}
	if s.icon != nil {
		item.Icon = s.icon()
	}
	if err := s.queue.Enqueue(item); err != nil {
		s.logger.Warn("queue session notification", "title", title, "error", err)
	}
}
