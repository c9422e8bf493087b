// Package services – NicknameService
//
// NicknameService applies the nickname rules (validation, one nickname per
// user per group, no-op changes) on top of a NicknameStore. The store only
// answers yes/no; this layer turns those answers into typed errors so both
// the bot and the admin API can react to them consistently.
package services

import (
	"context"
	"strings"

	"github.com/tbourn/go-nickname-bot/internal/domain"
)

// NicknameStore is the persistence contract required by NicknameService.
// *store.Store satisfies it.
type NicknameStore interface {
	Add(groupID, userID int64, username, nickname string) bool
	Get(groupID, userID int64) (domain.NicknameRecord, bool)
	GetAll(groupID int64) []domain.NicknameRecord
	Update(groupID, userID int64, nickname string) bool
	Remove(groupID, userID int64) bool
	Has(groupID, userID int64) bool
	Count(groupID int64) int
	Groups() []int64
	Dirty() bool
	IsHealthy() bool
}

// NicknameService provides the nickname operations behind the bot commands.
type NicknameService struct {
	// Store holds the records.
	Store NicknameStore

	// MaxLen caps nicknames by rune length.
	MaxLen int
}

// NewNicknameService constructs a NicknameService. A non-positive maxLen
// selects DefaultNicknameMaxLen.
func NewNicknameService(st NicknameStore, maxLen int) *NicknameService {
	if maxLen <= 0 {
		maxLen = DefaultNicknameMaxLen
	}
	return &NicknameService{Store: st, MaxLen: maxLen}
}

func (s *NicknameService) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.Store == nil {
		return ErrStoreUnavailable
	}
	return nil
}

// Add sets the nickname for a user who has none in the group yet. When the
// user already has one, the existing record is returned with
// ErrNicknameExists.
func (s *NicknameService) Add(ctx context.Context, groupID, userID int64, username, raw string) (domain.NicknameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return domain.NicknameRecord{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return domain.NicknameRecord{}, ErrMissingNickname
	}
	nick, err := ValidateNickname(raw, s.MaxLen)
	if err != nil {
		return domain.NicknameRecord{}, err
	}
	if cur, ok := s.Store.Get(groupID, userID); ok {
		return cur, ErrNicknameExists
	}
	if !s.Store.Add(groupID, userID, username, nick) {
		// Lost a race with a concurrent add for the same user.
		if cur, ok := s.Store.Get(groupID, userID); ok {
			return cur, ErrNicknameExists
		}
		return domain.NicknameRecord{}, ErrStoreWrite
	}
	rec, ok := s.Store.Get(groupID, userID)
	if !ok {
		return domain.NicknameRecord{}, ErrStoreWrite
	}
	return rec, nil
}

// Change replaces the user's nickname and returns the old and new values.
// With a missing argument the current nickname is returned as old together
// with ErrMissingNickname, so callers can show it.
func (s *NicknameService) Change(ctx context.Context, groupID, userID int64, raw string) (oldNick, newNick string, err error) {
	if err := s.ready(ctx); err != nil {
		return "", "", err
	}
	cur, ok := s.Store.Get(groupID, userID)
	if !ok {
		return "", "", ErrNicknameNotFound
	}
	if strings.TrimSpace(raw) == "" {
		return cur.Nickname, "", ErrMissingNickname
	}
	nick, err := ValidateNickname(raw, s.MaxLen)
	if err != nil {
		return cur.Nickname, "", err
	}
	if nick == cur.Nickname {
		return cur.Nickname, nick, ErrNicknameUnchanged
	}
	if !s.Store.Update(groupID, userID, nick) {
		if !s.Store.Has(groupID, userID) {
			return cur.Nickname, "", ErrNicknameNotFound
		}
		return cur.Nickname, "", ErrStoreWrite
	}
	return cur.Nickname, nick, nil
}

// Remove deletes the user's nickname and returns the removed record.
func (s *NicknameService) Remove(ctx context.Context, groupID, userID int64) (domain.NicknameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return domain.NicknameRecord{}, err
	}
	cur, ok := s.Store.Get(groupID, userID)
	if !ok {
		return domain.NicknameRecord{}, ErrNicknameNotFound
	}
	if !s.Store.Remove(groupID, userID) {
		return domain.NicknameRecord{}, ErrNicknameNotFound
	}
	return cur, nil
}

// Get returns the user's nickname record in the group.
func (s *NicknameService) Get(ctx context.Context, groupID, userID int64) (domain.NicknameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return domain.NicknameRecord{}, err
	}
	rec, ok := s.Store.Get(groupID, userID)
	if !ok {
		return domain.NicknameRecord{}, ErrNicknameNotFound
	}
	return rec, nil
}

// List returns every nickname in the group, oldest first.
func (s *NicknameService) List(ctx context.Context, groupID int64) ([]domain.NicknameRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.Store.GetAll(groupID), nil
}

// ListPage returns one page of the group's nicknames and the total count.
// Invalid page or pageSize values fall back to 1 and 20.
func (s *NicknameService) ListPage(ctx context.Context, groupID int64, page, pageSize int) ([]domain.NicknameRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	all, err := s.List(ctx, groupID)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	offset := (page - 1) * pageSize
	if offset >= len(all) {
		return []domain.NicknameRecord{}, total, nil
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// Groups summarizes every group that holds at least one nickname.
func (s *NicknameService) Groups(ctx context.Context) ([]domain.GroupSummary, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ids := s.Store.Groups()
	out := make([]domain.GroupSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.GroupSummary{GroupID: id, Count: s.Store.Count(id)})
	}
	return out, nil
}

// Durable reports whether the last change reached disk.
func (s *NicknameService) Durable() bool {
	return s != nil && s.Store != nil && !s.Store.Dirty()
}

// Healthy reports whether the underlying store is usable.
func (s *NicknameService) Healthy() bool {
	return s != nil && s.Store != nil && s.Store.IsHealthy()
}
