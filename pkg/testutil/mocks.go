// Package testutil provides fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"sync"
)

// MockSession records inactivity callbacks in the order they fire.
type MockSession struct {
	mu     sync.Mutex
	events []string
}

// NewMockSession creates a new mock session
func NewMockSession() *MockSession {
	return &MockSession{}
}

// Lock implements inactivity.Session
func (m *MockSession) Lock() { m.record("lock") }

// Timeout implements inactivity.Session
func (m *MockSession) Timeout() { m.record("timeout") }

// Logout implements inactivity.Session
func (m *MockSession) Logout() { m.record("logout") }

func (m *MockSession) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of the recorded callbacks
func (m *MockSession) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.events))
	copy(result, m.events)
	return result
}

// Count returns how many times event fired
func (m *MockSession) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == event {
			n++
		}
	}
	return n
}

// Clear resets the recorded events
func (m *MockSession) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// MockRefresher is a refresh callback that counts calls and can fail
type MockRefresher struct {
	mu    sync.Mutex
	calls int
	errs  []error
	err   error
}

// NewMockRefresher creates a new mock refresher
func NewMockRefresher() *MockRefresher {
	return &MockRefresher{}
}

// Refresh implements refresh.Refresher. Queued errors are returned first,
// one per call, then the fixed error set by SetError.
func (m *MockRefresher) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return m.err
}

// SetError sets the error returned by every call
func (m *MockRefresher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// QueueErrors queues one-shot results, nil meaning success
func (m *MockRefresher) QueueErrors(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// Calls returns how many times Refresh was called
func (m *MockRefresher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ErrMockDenied is returned by MockPermission when configured to fail
var ErrMockDenied = errors.New("mock permission request failed")

// MockPermission is a delivery permission with a scripted outcome
type MockPermission struct {
	mu           sync.Mutex
	granted      bool
	grantOnAsk   bool
	requestErr   error
	grantedCalls int
	requestCalls int
}

// NewMockPermission creates a permission that starts granted or not, and
// whether a request grants it
func NewMockPermission(granted, grantOnAsk bool) *MockPermission {
	return &MockPermission{granted: granted, grantOnAsk: grantOnAsk}
}

// Granted implements delivery.Permission
func (m *MockPermission) Granted(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantedCalls++
	return m.granted
}

// Request implements delivery.Permission
func (m *MockPermission) Request(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCalls++
	if m.requestErr != nil {
		return false, m.requestErr
	}
	m.granted = m.grantOnAsk
	return m.granted, nil
}

// SetRequestError makes Request fail
func (m *MockPermission) SetRequestError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestErr = err
}

// GrantedCalls returns how many times Granted was called
func (m *MockPermission) GrantedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grantedCalls
}

// RequestCalls returns how many times Request was called
func (m *MockPermission) RequestCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCalls
}

// MockStatusReporter counts delivery status reports
type MockStatusReporter struct {
	mu       sync.Mutex
	sending  int
	success  int
	failures int
}

// NewMockStatusReporter creates a new mock status reporter
func NewMockStatusReporter() *MockStatusReporter {
	return &MockStatusReporter{}
}

// ReportSending implements interfaces.StatusReporter
func (m *MockStatusReporter) ReportSending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sending++
}

// ReportSuccess implements interfaces.StatusReporter
func (m *MockStatusReporter) ReportSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success++
}

// ReportFailure implements interfaces.StatusReporter
func (m *MockStatusReporter) ReportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// Counts returns sending, success and failure counts
func (m *MockStatusReporter) Counts() (sending, success, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending, m.success, m.failures
}
