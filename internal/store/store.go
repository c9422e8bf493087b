// Package store implements the nickname store: an in-memory two-level map
// of group → user → record, persisted to a single JSON file.
//
// Every mutation is written through to disk with an atomic replace (write a
// sibling temp file, then rename it over the target), so readers never see a
// half-written file. Disk problems never fail an operation: the in-memory
// state stays authoritative, the failure is logged, and Dirty reports that
// memory is ahead of disk until the next successful save.
//
// Loading is forgiving. A missing or unparsable file starts the store empty;
// malformed groups and records are skipped one by one.
//
// All methods are safe for concurrent use. A single mutex guards the map and
// is held across the save, so two saves can never race on the rename.
package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-nickname-bot/internal/domain"
	"github.com/tbourn/go-nickname-bot/internal/retry"
)

// DefaultMaxNicknameLen is the longest nickname the store accepts.
const DefaultMaxNicknameLen = 50

// Store is the nickname store. Use Open to construct one.
type Store struct {
	mu     sync.Mutex
	path   string
	groups groupMap
	dirty  bool
	last   time.Time

	maxLen int
	policy retry.Policy
	now    func() time.Time
	logger zerolog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithMaxNicknameLen overrides DefaultMaxNicknameLen.
func WithMaxNicknameLen(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithRetryPolicy overrides the retry policy used for file reads and writes.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides the time source used for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates the parent directory of path if needed and loads any existing
// data. It only fails when the directory cannot be created.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		groups: make(groupMap),
		maxLen: DefaultMaxNicknameLen,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "store").Str("path", path).Logger()

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create storage directory %s", dir)
		}
	}

	s.load()
	recordsGauge.Set(float64(s.total()))
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// load reads the backing file into memory. It never fails.
func (s *Store) load() {
	var data []byte
	err := retry.Do(context.Background(), s.policy, func() error {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return err
		}
		data = b
		return nil
	}, retry.IsFilesystemError, func(err error, next time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", next).Msg("reading storage file failed, retrying")
	})

	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info().Msg("storage file not found, starting empty")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("storage file unreadable, starting empty")
		return
	}

	groups, err := decodeFile(data, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("storage file corrupted, starting empty")
		return
	}
	s.groups = groups
	for _, users := range groups {
		for _, rec := range users {
			if rec.AddedAt.After(s.last) {
				s.last = rec.AddedAt
			}
		}
	}
	s.logger.Info().Int("groups", len(groups)).Int("records", s.total()).Msg("storage loaded")
}

// save writes the whole map to disk. Callers must hold s.mu.
func (s *Store) save() bool {
	data, skipped, err := encodeFile(s.groups, s.logger)
	if err != nil {
		s.logger.Error().Err(err).Msg("storage serialization failed")
		s.markSaved(false)
		return false
	}

	err = retry.Do(context.Background(), s.policy, func() error {
		return writeAtomic(s.path, data)
	}, retry.IsFilesystemError, func(err error, next time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", next).Msg("writing storage file failed, retrying")
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("storage write failed, keeping data in memory only")
		s.markSaved(false)
		return false
	}
	if skipped > 0 {
		s.logger.Error().Int("skipped", skipped).Msg("storage saved without some records")
		s.markSaved(false)
		return false
	}
	s.logger.Debug().Msg("storage saved")
	s.markSaved(true)
	return true
}

func (s *Store) markSaved(ok bool) {
	s.dirty = !ok
	if ok {
		savesTotal.WithLabelValues("ok").Inc()
	} else {
		savesTotal.WithLabelValues("failed").Inc()
	}
	recordsGauge.Set(float64(s.total()))
}

// writeAtomic writes data to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// stamp returns a creation time strictly after every earlier one, so that
// GetAll ordering is stable even when the clock does not advance.
func (s *Store) stamp() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// recoverOp turns an unexpected panic into a failed result.
func (s *Store) recoverOp(op string, ok *bool) {
	if r := recover(); r != nil {
		s.logger.Error().Interface("panic", r).Str("op", op).Msg("store operation failed")
		*ok = false
	}
}

// Add stores a nickname for userID in groupID. It returns false when the
// input is invalid or the user already has a nickname in the group. A failed
// disk write still counts as success; see Dirty.
func (s *Store) Add(groupID, userID int64, username, nickname string) (ok bool) {
	defer s.recoverOp("add", &ok)
	if username == "" || !utf8.ValidString(username) || !s.validNickname(nickname) {
		s.logger.Error().Int64("group_id", groupID).Int64("user_id", userID).Msg("add rejected: invalid input")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.groups[groupID]
	if _, exists := users[userID]; exists {
		s.logger.Debug().Int64("group_id", groupID).Int64("user_id", userID).Msg("user already has a nickname")
		return false
	}
	if users == nil {
		users = make(map[int64]*domain.NicknameRecord)
		s.groups[groupID] = users
	}
	users[userID] = &domain.NicknameRecord{
		UserID:   userID,
		Username: username,
		Nickname: nickname,
		AddedAt:  s.stamp(),
	}

	if !s.save() {
		s.logger.Warn().Int64("group_id", groupID).Int64("user_id", userID).Msg("nickname added in memory only")
	}
	s.logger.Info().Int64("group_id", groupID).Int64("user_id", userID).Str("nickname", nickname).Msg("nickname added")
	return true
}

// Get returns a copy of the record for userID in groupID.
func (s *Store) Get(groupID, userID int64) (domain.NicknameRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.groups[groupID][userID]
	if !ok {
		return domain.NicknameRecord{}, false
	}
	return *rec, true
}

// GetAll returns copies of every record in groupID, oldest first.
func (s *Store) GetAll(groupID int64) []domain.NicknameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.groups[groupID]
	out := make([]domain.NicknameRecord, 0, len(users))
	for _, rec := range users {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}

// Update replaces the nickname of an existing record, keeping its user,
// username and creation time. It returns false if there is no record or the
// new nickname is invalid.
func (s *Store) Update(groupID, userID int64, nickname string) (ok bool) {
	defer s.recoverOp("update", &ok)
	if !s.validNickname(nickname) {
		s.logger.Error().Int64("group_id", groupID).Int64("user_id", userID).Msg("update rejected: invalid nickname")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.groups[groupID][userID]
	if !exists {
		s.logger.Debug().Int64("group_id", groupID).Int64("user_id", userID).Msg("no nickname to update")
		return false
	}
	old := rec.Nickname
	rec.Nickname = nickname

	if !s.save() {
		s.logger.Warn().Int64("group_id", groupID).Int64("user_id", userID).Msg("nickname updated in memory only")
	}
	s.logger.Info().Int64("group_id", groupID).Int64("user_id", userID).Str("old", old).Str("new", nickname).Msg("nickname updated")
	return true
}

// Remove deletes the record for userID in groupID, dropping the group when it
// becomes empty. It returns false if there was no record.
func (s *Store) Remove(groupID, userID int64) (ok bool) {
	defer s.recoverOp("remove", &ok)
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.groups[groupID]
	rec, exists := users[userID]
	if !exists {
		s.logger.Debug().Int64("group_id", groupID).Int64("user_id", userID).Msg("no nickname to remove")
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.groups, groupID)
	}

	if !s.save() {
		s.logger.Warn().Int64("group_id", groupID).Int64("user_id", userID).Msg("nickname removed in memory only")
	}
	s.logger.Info().Int64("group_id", groupID).Int64("user_id", userID).Str("nickname", rec.Nickname).Msg("nickname removed")
	return true
}

// Has reports whether userID has a nickname in groupID.
func (s *Store) Has(groupID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.groups[groupID][userID]
	return ok
}

// Count returns the number of nicknames in groupID.
func (s *Store) Count(groupID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups[groupID])
}

// Groups returns the ids of all groups holding at least one nickname, in
// ascending order.
func (s *Store) Groups() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.groups))
	for id, users := range s.groups {
		if len(users) > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dirty reports whether the last save failed, i.e. memory holds changes that
// are not on disk.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// IsHealthy checks that the in-memory map exists, the storage directory is
// writable and the storage file, if present, is readable.
func (s *Store) IsHealthy() (ok bool) {
	defer s.recoverOp("health", &ok)
	s.mu.Lock()
	if s.groups == nil {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	dir := filepath.Dir(s.path)
	probe, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Msg("storage directory is not writable")
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	f, err := os.Open(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return true
	case err != nil:
		s.logger.Warn().Err(err).Msg("storage file is not readable")
		return false
	}
	f.Close()
	return true
}

func (s *Store) validNickname(n string) bool {
	if n == "" || !utf8.ValidString(n) {
		return false
	}
	return utf8.RuneCountInString(n) <= s.maxLen
}

// total counts records. Callers must hold s.mu or own s exclusively.
func (s *Store) total() int {
	n := 0
	for _, users := range s.groups {
		n += len(users)
	}
	return n
}
