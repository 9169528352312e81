package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PRelay/service/storage"
	"PRelay/tools/errs"
)

func TestRegister_ResolveAndDuplicate(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	ctx := context.Background()

	// Given Bob registered on the first connection
	first := registered(t, srv, "Bob")
	got, ok := srv.Registry().Resolve("Bob")
	require.True(t, ok)
	assert.Same(t, first, got)
	frames := drain(t, first)
	require.Len(t, frames, 1)
	assert.Equal(t, EventRegistered, frames[0].Event)
	assert.Equal(t, "Bob", dataAs[string](t, frames[0]))

	// When a second connection claims the same name
	second := connect(t, srv)
	err := srv.Lifecycle().Register(ctx, second, "Bob")

	// Then it is rejected and the first binding is kept
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDuplicateRegistration))
	got, ok = srv.Registry().Resolve("Bob")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, StateAnonymous, second.State())

	rejected := drain(t, second)
	require.Len(t, rejected, 1)
	assert.Equal(t, EventRegisterRejected, rejected[0].Event)
	assert.Equal(t, "Bob", dataAs[RejectPayload](t, rejected[0]).Username)
	assert.Empty(t, drain(t, first), "no presence frames for a rejected registration")
}

func TestRegister_InvalidUsernames(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	for _, name := range []string{"", "   ", "all", "You", strings.Repeat("x", 65)} {
		s := connect(t, srv)
		err := srv.Lifecycle().Register(context.Background(), s, name)
		assert.True(t, errors.Is(err, errs.ErrInvalidUsername), "name %q", name)
		assert.Equal(t, StateAnonymous, s.State())
	}
	assert.Zero(t, srv.Registry().Len())
}

func TestRegister_SameSessionTwice(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	s := registered(t, srv, "Bob")

	err := srv.Lifecycle().Register(context.Background(), s, "Robert")
	assert.True(t, errors.Is(err, errs.ErrAlreadyRegistered))
	_, ok := srv.Registry().Resolve("Robert")
	assert.False(t, ok)
	name, ok := s.Username()
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)
}

func TestRegister_AfterDisconnect(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	s := connect(t, srv)
	srv.Lifecycle().Disconnect(context.Background(), s)

	err := srv.Lifecycle().Register(context.Background(), s, "Bob")
	assert.True(t, errors.Is(err, errs.ErrSessionClosed))
	_, ok := srv.Registry().Resolve("Bob")
	assert.False(t, ok)
}

func TestRegister_NotifiesOthers(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	anon := connect(t, srv)
	bob := registered(t, srv, "Bob")
	drain(t, anon)

	registered(t, srv, "Carol")

	for _, s := range []*Session{anon, bob} {
		joined := ofEvent(drain(t, s), EventUserConnected)
		require.Len(t, joined, 1)
		assert.Equal(t, "Carol has joined the chat", dataAs[string](t, joined[0]))
	}
}

func TestDisconnect_NotifiesEachOtherConnectionOnce(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	alice := registered(t, srv, "Alice")
	bob := registered(t, srv, "Bob")
	carol := registered(t, srv, "Carol")
	for _, s := range []*Session{alice, bob, carol} {
		drain(t, s)
	}

	// When Bob disconnects, twice
	assert.True(t, srv.Lifecycle().Disconnect(context.Background(), bob))
	assert.False(t, srv.Lifecycle().Disconnect(context.Background(), bob))

	// Then Bob is gone and the others heard about it exactly once
	_, ok := srv.Registry().Resolve("Bob")
	assert.False(t, ok)
	assert.Equal(t, StateClosed, bob.State())
	assert.Equal(t, 2, srv.ConnMgr().Count())
	for _, s := range []*Session{alice, carol} {
		left := ofEvent(drain(t, s), EventUserDisconnected)
		require.Len(t, left, 1)
		assert.Equal(t, "Bob has left the chat", dataAs[string](t, left[0]))
	}
	select {
	case <-bob.Done():
	default:
		t.Fatal("session queue not closed")
	}
}

func TestDisconnect_AnonymousIsSilent(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	bob := registered(t, srv, "Bob")
	drain(t, bob)
	anon := connect(t, srv)

	assert.False(t, srv.Lifecycle().Disconnect(context.Background(), anon))
	assert.Empty(t, drain(t, bob))
	assert.Equal(t, 1, srv.ConnMgr().Count())
}

func TestAgentUserListScenario(t *testing.T) {
	srv := newTestServer(t, nil, nil, "Alice")

	// Given agent Alice connects first
	alice := registered(t, srv, "Alice")
	assert.Equal(t, RoleAgent, alice.Role())
	lists := ofEvent(drain(t, alice), EventUpdateUserList)
	require.Len(t, lists, 1)
	assert.Equal(t, []string{}, dataAs[[]string](t, lists[0]))

	// When Bob registers
	bob := registered(t, srv, "Bob")
	assert.Equal(t, RolePlainUser, bob.Role())

	// Then Alice sees Bob joining and the list ["Bob"]
	frames := drain(t, alice)
	require.Len(t, ofEvent(frames, EventUserConnected), 1)
	lists = ofEvent(frames, EventUpdateUserList)
	require.Len(t, lists, 1)
	assert.Equal(t, []string{"Bob"}, dataAs[[]string](t, lists[0]))
	assert.Empty(t, ofEvent(drain(t, bob), EventUpdateUserList), "plain users never get the list")

	// And Bob leaving pushes the emptied list again
	srv.Lifecycle().Disconnect(context.Background(), bob)
	lists = ofEvent(drain(t, alice), EventUpdateUserList)
	require.Len(t, lists, 1)
	assert.Equal(t, []string{}, dataAs[[]string](t, lists[0]))
	assert.Equal(t, []string{"Alice"}, srv.Snapshot().Agents)
}

func TestRegisterDisconnectRace(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	for i := 0; i < 200; i++ {
		s := connect(t, srv)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = srv.Lifecycle().Register(context.Background(), s, "Racer")
		}()
		go func() {
			defer wg.Done()
			srv.Lifecycle().Disconnect(context.Background(), s)
		}()
		wg.Wait()

		// whichever side won, a closed session never stays bound
		assert.Equal(t, StateClosed, s.State())
		_, ok := srv.Registry().Resolve("Racer")
		require.False(t, ok, "iteration %d", i)
	}
	assert.Zero(t, srv.ConnMgr().Count())
}

func newPooledServer(t *testing.T, agents ...string) *Server {
	t.Helper()
	srv := NewServer(Options{
		Agents:        agents,
		SendQueueSize: 512,
		FanoutWorkers: 4,
		FanoutQueue:   8,
		UnauthTTL:     time.Hour,
		SweepEvery:    time.Hour,
	}, storage.NewMemoryHistory(), nil, nil)
	t.Cleanup(srv.Close)
	return srv
}

func TestConcurrentRegister_AgentEndsWithCurrentList(t *testing.T) {
	for iter := 0; iter < 30; iter++ {
		srv := newPooledServer(t, "Alice")
		alice := registered(t, srv, "Alice")

		// Given 32 plain users registering at once
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			s := connect(t, srv)
			wg.Add(1)
			go func(s *Session, name string) {
				defer wg.Done()
				_ = srv.Lifecycle().Register(context.Background(), s, name)
			}(s, fmt.Sprintf("u%d", i))
		}
		wg.Wait()
		srv.fanout.Close() // 等待已入队的广播投递完

		// Then Alice's last list is the registry's current view
		lists := ofEvent(drain(t, alice), EventUpdateUserList)
		require.NotEmpty(t, lists)
		last := dataAs[[]string](t, lists[len(lists)-1])
		require.Equal(t, srv.Registry().Usernames(RolePlainUser), last, "iteration %d", iter)
		assert.Len(t, last, 32)
	}
}

func TestRejoinNeverOvertakesLeave(t *testing.T) {
	for iter := 0; iter < 100; iter++ {
		srv := newPooledServer(t)
		watcher := registered(t, srv, "Watcher")
		first := registered(t, srv, "Bob")
		second := connect(t, srv)

		// Given Bob's first session leaving while a second one claims the name
		var wg sync.WaitGroup
		var regErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			srv.Lifecycle().Disconnect(context.Background(), first)
		}()
		go func() {
			defer wg.Done()
			regErr = srv.Lifecycle().Register(context.Background(), second, "Bob")
		}()
		wg.Wait()
		srv.fanout.Close()

		// Then the watcher's final presence frame matches who holds the name
		var notices []Frame
		for _, f := range drain(t, watcher) {
			if f.Event == EventUserConnected || f.Event == EventUserDisconnected {
				notices = append(notices, f)
			}
		}
		require.NotEmpty(t, notices)
		final := notices[len(notices)-1]
		if regErr == nil {
			assert.Equal(t, EventUserConnected, final.Event, "iteration %d", iter)
			assert.Equal(t, JoinedText("Bob"), dataAs[string](t, final))
		} else {
			assert.Equal(t, EventUserDisconnected, final.Event, "iteration %d", iter)
		}
	}
}
