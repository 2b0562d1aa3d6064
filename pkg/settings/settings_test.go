package settings

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "github.com/teslashibe/llamadoc-voice/internal/log"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   VoiceSettings
		want VoiceSettings
	}{
		{"defaults stay", Defaults(), Defaults()},
		{"unknown voice", VoiceSettings{VoiceType: "robot", Rate: 200, Volume: 0.5}, VoiceSettings{VoiceDefault, 200, 0.5}},
		{"zero rate", VoiceSettings{VoiceType: VoiceMale, Volume: 1}, VoiceSettings{VoiceMale, DefaultRate, 1}},
		{"slow", VoiceSettings{VoiceType: VoiceFemale, Rate: 10, Volume: 1}, VoiceSettings{VoiceFemale, MinRate, 1}},
		{"fast", VoiceSettings{VoiceType: VoiceFemale, Rate: 900, Volume: 1}, VoiceSettings{VoiceFemale, MaxRate, 1}},
		{"loud", VoiceSettings{VoiceType: VoiceMale, Rate: 180, Volume: 3}, VoiceSettings{VoiceMale, 180, 1}},
		{"negative volume", VoiceSettings{VoiceType: VoiceMale, Rate: 180, Volume: -1}, VoiceSettings{VoiceMale, 180, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	m, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), m.Current())

	raw, err := store.Get(ctx, Key)
	require.NoError(t, err, "defaults must be written on first run")
	var stored VoiceSettings
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, Defaults(), stored)
}

func TestStoredJSONUsesFixedFieldNames(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)
	_, err = m.SetRate(ctx, 220)
	require.NoError(t, err)

	raw, _ := store.Get(ctx, Key)
	assert.JSONEq(t, `{"voiceType":"default","rate":220,"volume":1}`, string(raw))
}

func TestLoadReadsExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, Key, []byte(`{"voiceType":"female","rate":150,"volume":0.4}`)))

	m, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, VoiceSettings{VoiceFemale, 150, 0.4}, m.Current())
}

func TestLoadResetsCorruptValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, Key, []byte(`{not json`)))

	m, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), m.Current())

	raw, _ := store.Get(ctx, Key)
	assert.JSONEq(t, `{"voiceType":"default","rate":180,"volume":1}`, string(raw))
}

type failingStore struct {
	*MemoryStore
	getErr, setErr error
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, v []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStore.Set(ctx, key, v)
}

func TestLoadPropagatesStoreError(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), getErr: errors.New("disk on fire")}
	_, err := Load(context.Background(), store, WithLogger(applog.Discard()))
	assert.Error(t, err)
}

func TestUpdatePersistsEveryChange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)

	var seen []VoiceSettings
	m.OnChange(func(s VoiceSettings) { seen = append(seen, s) })

	_, err = m.SetVoiceType(ctx, VoiceMale)
	require.NoError(t, err)
	_, err = m.SetRate(ctx, 250)
	require.NoError(t, err)
	got, err := m.SetVolume(ctx, 0.25)
	require.NoError(t, err)

	want := VoiceSettings{VoiceMale, 250, 0.25}
	assert.Equal(t, want, got)
	assert.Len(t, seen, 3)

	reloaded, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, want, reloaded.Current())
}

func TestUpdateKeepsValueWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore()}
	m, err := Load(ctx, store, WithLogger(applog.Discard()))
	require.NoError(t, err)

	store.setErr = errors.New("read-only")
	_, err = m.SetRate(ctx, 120)
	assert.Error(t, err)
	assert.Equal(t, 120, m.Current().Rate)
}

func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, Key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, Key, []byte(`{"rate":1}`)))
	require.NoError(t, s.Set(ctx, Key, []byte(`{"rate":2}`)))
	got, err := s.Get(ctx, Key)
	require.NoError(t, err)
	assert.Equal(t, `{"rate":2}`, string(got))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := NewFileStore(dir)
	storeContract(t, s)

	_, err := os.Stat(filepath.Join(dir, Key+".json"))
	assert.NoError(t, err)

	assert.Error(t, s.Set(context.Background(), "../escape", nil))
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore(BadgerOptions{InMemory: true, Logger: applog.Discard()})
	require.NoError(t, err)
	defer s.Close()
	storeContract(t, s)
}

func TestBadgerStoreRequiresDir(t *testing.T) {
	_, err := NewBadgerStore(BadgerOptions{})
	assert.Error(t, err)
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(BadgerOptions{Dir: dir, Logger: applog.Discard()})
	require.NoError(t, err)
	m, err := Load(ctx, s, WithLogger(applog.Discard()))
	require.NoError(t, err)
	_, err = m.SetVoiceType(ctx, VoiceFemale)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(BadgerOptions{Dir: dir, Logger: applog.Discard()})
	require.NoError(t, err)
	defer s.Close()
	m, err = Load(ctx, s, WithLogger(applog.Discard()))
	require.NoError(t, err)
	assert.Equal(t, VoiceFemale, m.Current().VoiceType)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Prefix: "llamadoc-test-" + t.Name()})
	require.NoError(t, err)
	defer s.Close()
	defer s.client.Del(ctx, s.prefix+Key)
	storeContract(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	for _, kind := range []string{"memory", "file"} {
		s, err := Open(ctx, OpenOptions{Kind: kind, Dir: t.TempDir()})
		require.NoError(t, err, kind)
		s.Close()
	}
	_, err := Open(ctx, OpenOptions{Kind: "etcd"})
	assert.Error(t, err)
}
