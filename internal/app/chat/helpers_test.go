package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rtchat/internal/app/model"
	"rtchat/internal/app/store"
)

type delivery struct {
	event   EventType
	payload any
}

// fakeConn records deliveries in memory.
type fakeConn struct {
	mu          sync.Mutex
	deliveries  []delivery
	closed      bool
	closeCode   int
	closeReason string
}

func (f *fakeConn) Deliver(event EventType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errClientClosed
	}
	f.deliveries = append(f.deliveries, delivery{event: event, payload: payload})
	return nil
}

func (f *fakeConn) Close(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		f.closeCode = code
		f.closeReason = reason
	}
}

func (f *fakeConn) events(event EventType) []any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []any
	for _, d := range f.deliveries {
		if d.event == event {
			out = append(out, d.payload)
		}
	}
	return out
}

func (f *fakeConn) messages(event EventType) []model.Message {
	var out []model.Message
	for _, p := range f.events(event) {
		out = append(out, p.(model.Message))
	}
	return out
}

func (f *fakeConn) lastRoster(t *testing.T) []model.User {
	t.Helper()
	rosters := f.events(EventUsers)
	require.NotEmpty(t, rosters)
	return []model.User(rosters[len(rosters)-1].(UsersPayload))
}

func newTestManager(t *testing.T) (*Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	m := NewManager(mem)
	require.NoError(t, m.Start(t.Context()))
	return m, mem
}

func addAccount(t *testing.T, mem *store.Memory, id string) model.User {
	t.Helper()
	_, err := mem.SaveAccount(t.Context(), model.Account{ID: id, Username: id, CreatedAt: time.Now()})
	require.NoError(t, err)
	return model.User{ID: id, Username: id}
}

func decodeEnvelope(t *testing.T, frame []byte) inboundEnvelope {
	t.Helper()
	var env inboundEnvelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}
