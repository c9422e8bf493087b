package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-nickname-bot/internal/domain"
)

// ----- Fake store -----

type fakeStore struct {
	data  map[int64]map[int64]domain.NicknameRecord
	seq   int
	dirty bool

	failAdd    bool
	failUpdate bool
	unhealthy  bool

	addCalls    int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[int64]map[int64]domain.NicknameRecord{}}
}

func (f *fakeStore) Add(g, u int64, username, nick string) bool {
	f.addCalls++
	if f.failAdd {
		return false
	}
	if _, ok := f.data[g][u]; ok {
		return false
	}
	if f.data[g] == nil {
		f.data[g] = map[int64]domain.NicknameRecord{}
	}
	f.seq++
	f.data[g][u] = domain.NicknameRecord{
		UserID: u, Username: username, Nickname: nick,
		AddedAt: time.Unix(int64(f.seq), 0),
	}
	return true
}

func (f *fakeStore) Get(g, u int64) (domain.NicknameRecord, bool) {
	r, ok := f.data[g][u]
	return r, ok
}

func (f *fakeStore) GetAll(g int64) []domain.NicknameRecord {
	out := []domain.NicknameRecord{}
	for _, r := range f.data[g] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out
}

func (f *fakeStore) Update(g, u int64, nick string) bool {
	f.updateCalls++
	r, ok := f.data[g][u]
	if !ok || f.failUpdate {
		return false
	}
	r.Nickname = nick
	f.data[g][u] = r
	return true
}

func (f *fakeStore) Remove(g, u int64) bool {
	if _, ok := f.data[g][u]; !ok {
		return false
	}
	delete(f.data[g], u)
	if len(f.data[g]) == 0 {
		delete(f.data, g)
	}
	return true
}

func (f *fakeStore) Has(g, u int64) bool { _, ok := f.data[g][u]; return ok }
func (f *fakeStore) Count(g int64) int   { return len(f.data[g]) }
func (f *fakeStore) Dirty() bool         { return f.dirty }
func (f *fakeStore) IsHealthy() bool     { return !f.unhealthy }

func (f *fakeStore) Groups() []int64 {
	out := []int64{}
	for g := range f.data {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ----- Tests -----

const gid int64 = -1001

func TestNewNicknameService_Defaults(t *testing.T) {
	s := NewNicknameService(newFakeStore(), 0)
	require.Equal(t, DefaultNicknameMaxLen, s.MaxLen)
}

func TestAdd_Success(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)

	rec, err := s.Add(context.Background(), gid, 111, "alice", "  Cool   Ali ")
	require.NoError(t, err)
	require.Equal(t, "Cool Ali", rec.Nickname)
	require.Equal(t, "alice", rec.Username)
	require.Equal(t, 1, st.Count(gid))
}

func TestAdd_Existing(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)
	_, err := s.Add(context.Background(), gid, 111, "alice", "Ali")
	require.NoError(t, err)

	cur, err := s.Add(context.Background(), gid, 111, "alice", "Other")
	require.ErrorIs(t, err, ErrNicknameExists)
	require.Equal(t, "Ali", cur.Nickname)
	require.Equal(t, 1, st.addCalls)
}

func TestAdd_MissingAndInvalid(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)

	_, err := s.Add(context.Background(), gid, 111, "alice", "  ")
	require.ErrorIs(t, err, ErrMissingNickname)

	_, err = s.Add(context.Background(), gid, 111, "alice", "<script>")
	require.True(t, IsValidation(err))
	require.Zero(t, st.addCalls)
}

func TestAdd_StoreRejects(t *testing.T) {
	st := newFakeStore()
	st.failAdd = true
	s := NewNicknameService(st, 50)

	_, err := s.Add(context.Background(), gid, 111, "alice", "Ali")
	require.ErrorIs(t, err, ErrStoreWrite)
}

func TestAdd_NoStoreOrCanceled(t *testing.T) {
	var s NicknameService
	_, err := s.Add(context.Background(), gid, 111, "alice", "Ali")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewNicknameService(newFakeStore(), 50).Add(ctx, gid, 111, "alice", "Ali")
	require.ErrorIs(t, err, context.Canceled)
}

func TestChange(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)
	ctx := context.Background()

	_, _, err := s.Change(ctx, gid, 111, "New")
	require.ErrorIs(t, err, ErrNicknameNotFound)

	_, err = s.Add(ctx, gid, 111, "alice", "Ali")
	require.NoError(t, err)

	old, _, err := s.Change(ctx, gid, 111, "")
	require.ErrorIs(t, err, ErrMissingNickname)
	require.Equal(t, "Ali", old)

	_, _, err = s.Change(ctx, gid, 111, " Ali ")
	require.ErrorIs(t, err, ErrNicknameUnchanged)
	require.Zero(t, st.updateCalls)

	_, _, err = s.Change(ctx, gid, 111, "javascript:x")
	require.True(t, IsValidation(err))

	old, nick, err := s.Change(ctx, gid, 111, "Alicia")
	require.NoError(t, err)
	require.Equal(t, "Ali", old)
	require.Equal(t, "Alicia", nick)
	rec, _ := st.Get(gid, 111)
	require.Equal(t, "Alicia", rec.Nickname)
}

func TestChange_StoreRejects(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)
	_, err := s.Add(context.Background(), gid, 111, "alice", "Ali")
	require.NoError(t, err)

	st.failUpdate = true
	_, _, err = s.Change(context.Background(), gid, 111, "Alicia")
	require.ErrorIs(t, err, ErrStoreWrite)
}

func TestRemove(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)
	ctx := context.Background()

	_, err := s.Remove(ctx, gid, 111)
	require.ErrorIs(t, err, ErrNicknameNotFound)

	_, err = s.Add(ctx, gid, 111, "alice", "Ali")
	require.NoError(t, err)
	rec, err := s.Remove(ctx, gid, 111)
	require.NoError(t, err)
	require.Equal(t, "Ali", rec.Nickname)
	require.False(t, st.Has(gid, 111))
}

func TestGetAndList(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)
	ctx := context.Background()

	_, err := s.Get(ctx, gid, 1)
	require.True(t, errors.Is(err, ErrNicknameNotFound))

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Add(ctx, gid, int64(i+1), name, "N"+name)
		require.NoError(t, err)
	}
	rec, err := s.Get(ctx, gid, 3)
	require.NoError(t, err)
	require.Equal(t, "Nc", rec.Nickname)

	all, err := s.List(ctx, gid)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, "Na", all[0].Nickname)

	page, total, err := s.ListPage(ctx, gid, 2, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	require.Equal(t, "Nc", page[0].Nickname)

	page, total, err = s.ListPage(ctx, gid, 3, 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, page, 1)

	page, _, err = s.ListPage(ctx, gid, 9, 2)
	require.NoError(t, err)
	require.Empty(t, page)

	page, _, err = s.ListPage(ctx, gid, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 5)
}

func TestGroupsDurableHealthy(t *testing.T) {
	st := newFakeStore()
	s := NewNicknameService(st, 50)
	ctx := context.Background()

	_, _ = s.Add(ctx, -2, 1, "a", "A")
	_, _ = s.Add(ctx, -2, 2, "b", "B")
	_, _ = s.Add(ctx, -1, 1, "a", "A")

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.GroupSummary{{GroupID: -2, Count: 2}, {GroupID: -1, Count: 1}}, groups)

	require.True(t, s.Durable())
	st.dirty = true
	require.False(t, s.Durable())

	require.True(t, s.Healthy())
	st.unhealthy = true
	require.False(t, s.Healthy())

	var none *NicknameService
	require.False(t, none.Durable())
	require.False(t, none.Healthy())
}
