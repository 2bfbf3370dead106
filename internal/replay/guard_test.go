package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, ttl time.Duration, tokens ...string) (*RedisGuard, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	g := NewRedisGuard(db, ttl)
	g.token = func() string {
		require.NotEmpty(t, tokens, "unexpected token request")
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}
	return g, mock
}

func TestRedisGuard_AcquireAndRelease(t *testing.T) {
	g, mock := newGuard(t, 10*time.Second, "tok-1")
	ctx := context.Background()

	mock.ExpectSetNX("verify:abc", "tok-1", 10*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"verify:abc"}, "tok-1").SetVal(int64(1))

	ok, err := g.Acquire(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, g.Release(ctx, "abc"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGuard_ReleaseAfterExpiry(t *testing.T) {
	g, mock := newGuard(t, 10*time.Second, "tok-1")
	ctx := context.Background()

	// The key expired and another holder now owns it, so the script deletes nothing.
	mock.ExpectSetNX("verify:abc", "tok-1", 10*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"verify:abc"}, "tok-1").SetVal(int64(0))

	ok, err := g.Acquire(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, g.Release(ctx, "abc"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGuard_ReleaseWithoutAcquire(t *testing.T) {
	g, mock := newGuard(t, 10*time.Second, "tok-1")
	ctx := context.Background()

	mock.ExpectSetNX("verify:abc", "tok-1", 10*time.Second).SetVal(false)

	ok, err := g.Acquire(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)

	// Neither the losing caller nor an unknown authority touches the key.
	require.NoError(t, g.Release(ctx, "abc"))
	require.NoError(t, g.Release(ctx, "other"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisGuard_RedisDown(t *testing.T) {
	g, mock := newGuard(t, 0, "tok-1")

	mock.ExpectSetNX("verify:abc", "tok-1", 30*time.Second).SetErr(errors.New("connection refused"))

	_, err := g.Acquire(context.Background(), "abc")
	assert.Error(t, err)
	require.NoError(t, g.Release(context.Background(), "abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoop(t *testing.T) {
	ok, err := Noop{}.Acquire(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, Noop{}.Release(context.Background(), "x"))
}
