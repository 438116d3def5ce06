package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/potooio/herald/internal/types"
)

// FakeTransport records every email and can be told to fail or panic per address.
// It is safe for concurrent use.
type FakeTransport struct {
	mu      sync.Mutex
	sent    []types.Email
	failFor map[string]error
	panicOn map[string]bool
	failAll error
	seq     int
}

// NewFakeTransport creates a FakeTransport that accepts everything.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		failFor: make(map[string]error),
		panicOn: make(map[string]bool),
	}
}

// FailFor makes sends to address fail with err.
func (f *FakeTransport) FailFor(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[address] = err
}

// PanicOn makes sends to address panic.
func (f *FakeTransport) PanicOn(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicOn[address] = true
}

// FailAll makes every send fail with err. A nil err restores normal behaviour.
func (f *FakeTransport) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

// Name implements types.Transport.
func (f *FakeTransport) Name() string { return "fake" }

// Send implements types.Transport.
func (f *FakeTransport) Send(_ context.Context, email types.Email) (types.SendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(email.To) == 0 {
		return types.SendReceipt{}, errors.New("no recipients")
	}
	to := email.To[0]
	if f.panicOn[to] {
		panic("fake transport panic for " + to)
	}
	if f.failAll != nil {
		return types.SendReceipt{}, f.failAll
	}
	if err, ok := f.failFor[to]; ok {
		return types.SendReceipt{}, err
	}
	f.sent = append(f.sent, email)
	f.seq++
	return types.SendReceipt{MessageID: fmt.Sprintf("fake-%d", f.seq)}, nil
}

// Sent returns a copy of every accepted email.
func (f *FakeTransport) Sent() []types.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Email, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentTo returns the accepted emails addressed to address.
func (f *FakeTransport) SentTo(address string) []types.Email {
	var out []types.Email
	for _, e := range f.Sent() {
		for _, to := range e.To {
			if to == address {
				out = append(out, e)
			}
		}
	}
	return out
}

// FailingPreferences wraps a preference store and fails lookups for chosen users.
type FailingPreferences struct {
	types.PreferenceStore
	Fail map[string]error
}

// Get implements types.PreferenceStore.
func (f *FailingPreferences) Get(ctx context.Context, userID string) (*types.NotificationPreferences, error) {
	if err, ok := f.Fail[userID]; ok {
		return nil, err
	}
	return f.PreferenceStore.Get(ctx, userID)
}
