package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *sdk.Session {
	return &sdk.Session{
		Credential: "tok1",
		TokenType:  "Bearer",
		UserID:     1,
		Username:   "admin",
		FullName:   "Administrator",
		Email:      "admin@example.com",
		Roles:      sdk.RolesFromClaims([]string{"ROLE_ADMIN"}),
		IsActive:   true,
	}
}

// exerciseStorage checks the two-slot contract shared by every backend.
func exerciseStorage(t *testing.T, newStorage func() sdk.SessionStorage) {
	t.Helper()
	ctx := context.Background()
	storage := newStorage()

	slots, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Empty(), "fresh storage holds nothing")

	// Clearing empty storage is fine.
	require.NoError(t, storage.Clear(ctx))

	encoded, err := sdk.EncodeSlots(testSession())
	require.NoError(t, err)
	require.NoError(t, storage.Save(ctx, encoded))

	slots, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok1", slots.Credential)
	assert.JSONEq(t, string(encoded.Profile), string(slots.Profile))

	// A second handle over the same backend sees the session: a process restart.
	store, err := sdk.NewSessionStore(ctx, newStorage())
	require.NoError(t, err)
	got := store.Read()
	require.NotNil(t, got)
	assert.True(t, got.Equivalent(testSession()))

	second := testSession()
	second.Credential = "tok2"
	encoded, err = sdk.EncodeSlots(second)
	require.NoError(t, err)
	require.NoError(t, storage.Save(ctx, encoded))
	slots, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok2", slots.Credential, "save overwrites both slots")

	require.NoError(t, storage.Clear(ctx))
	slots, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.True(t, slots.Empty())
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".campus")
	exerciseStorage(t, func() sdk.SessionStorage { return NewFileStorage(dir, "") })
}

func TestFileStorage_Permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".campus")
	storage := NewFileStorage(dir, "")
	encoded, err := sdk.EncodeSlots(testSession())
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), encoded))

	info, err := os.Stat(storage.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileStorage_CorruptFileIsNoSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	storage := NewFileStorage("", path)
	_, err := storage.Load(context.Background())
	assert.ErrorIs(t, err, sdk.ErrMalformedSession)

	store, err := sdk.NewSessionStore(context.Background(), storage)
	require.NoError(t, err)
	assert.Nil(t, store.Read())
}

func TestSQLiteStorage(t *testing.T) {
	dir := t.TempDir()
	var opened []*SQLiteStorage
	t.Cleanup(func() {
		for _, s := range opened {
			s.Close()
		}
	})

	exerciseStorage(t, func() sdk.SessionStorage {
		s, err := NewSQLiteStorage(context.Background(), dir, "")
		require.NoError(t, err)
		opened = append(opened, s)
		return s
	})
}

func TestSQLiteStorage_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home", ".campus")
	storage, err := NewSQLiteStorage(context.Background(), dir, "")
	require.NoError(t, err)
	defer storage.Close()

	encoded, err := sdk.EncodeSlots(testSession())
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), encoded))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() redis.UniversalClient {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		return c
	}

	exerciseStorage(t, func() sdk.SessionStorage {
		return NewRedisStorage(newClient(), "test:session", 0)
	})
}

func TestRedisStorage_TTLCoversBothKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	storage := NewRedisStorage(client, "", time.Hour)
	encoded, err := sdk.EncodeSlots(testSession())
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), encoded))

	assert.Equal(t, time.Hour, mr.TTL("campus:session:token"))
	assert.Equal(t, time.Hour, mr.TTL("campus:session:user"))

	mr.FastForward(2 * time.Hour)
	slots, err := storage.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, slots.Empty())
}

func TestRedisStorage_HalfPairIsNoSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("campus:session:token", "tok1"))

	store, err := sdk.NewSessionStore(context.Background(), NewRedisStorage(client, "", 0))
	require.NoError(t, err)
	assert.Nil(t, store.Read())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []string{"", "file", "memory", "sqlite"} {
		storage, closer, err := Open(ctx, Options{Backend: backend, Dir: dir})
		require.NoError(t, err, backend)
		assert.NotNil(t, storage)
		assert.NoError(t, closer.Close())
	}

	mr := miniredis.RunT(t)
	storage, closer, err := Open(ctx, Options{Backend: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisStorage{}, storage)
	assert.NoError(t, closer.Close())

	_, _, err = Open(ctx, Options{Backend: "cookie"})
	assert.Error(t, err)
}
