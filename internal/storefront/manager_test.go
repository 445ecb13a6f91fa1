package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestManager_OpenGetClose(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps)
	t.Cleanup(m.CloseAll)

	s, err := m.Open(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("unknown")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, m.Close(s.ID()))
	assert.Equal(t, 0, m.Len())
	assert.ErrorIs(t, m.Close(s.ID()), domain.ErrSessionNotFound)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps)
	t.Cleanup(m.CloseAll)

	first, err := m.Open(context.Background())
	require.NoError(t, err)
	second, err := m.Open(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())

	_, err = first.SignIn(context.Background(), domain.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)
	_, err = first.AddToCart("lme-pp1", 1)
	require.NoError(t, err)

	assert.Nil(t, second.Identity())
	assert.Empty(t, second.Cart().Lines)
	assert.Len(t, first.Cart().Lines, 1)
}

func TestManager_ReapClosesIdleSessions(t *testing.T) {
	f := newFixture(t)
	clock := &fakeClock{now: time.Now()}
	m := NewManager(f.deps, WithIdleTimeout(time.Minute), WithClock(clock.Now))
	t.Cleanup(m.CloseAll)

	s, err := m.Open(context.Background())
	require.NoError(t, err)

	assert.Zero(t, m.Reap())
	assert.Equal(t, 1, m.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Reap())
	assert.Zero(t, m.Len())

	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_RunClosesAllOnCancel(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, WithIdleTimeout(time.Hour))

	s, err := m.Open(context.Background())
	require.NoError(t, err)
	_, err = s.SignIn(context.Background(), domain.Credentials{Email: aliceEmail, Password: alicePassword})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.Zero(t, m.Len())
	assert.Nil(t, s.Identity())

	_, err = m.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
