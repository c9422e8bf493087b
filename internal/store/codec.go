package store

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-nickname-bot/internal/domain"
)

// TimeLayout is the on-disk timestamp layout. Fixed-width fractional seconds
// keep the file diff-friendly and lexically ordered.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// legacyLayouts are accepted on load in addition to TimeLayout.
var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// requiredFields must all be present in a record object.
var requiredFields = []string{"user_id", "username", "nickname", "added_at"}

// fileRecord is the persisted shape of a domain.NicknameRecord.
type fileRecord struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	AddedAt  string `json:"added_at"`
}

type groupMap map[int64]map[int64]*domain.NicknameRecord

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", s)
}

// decodeFile turns raw file bytes into the in-memory map. Entries that fail
// validation are skipped and logged; only a document that is not a JSON
// object at all yields an error, and the caller then starts empty.
func decodeFile(data []byte, lg zerolog.Logger) (groupMap, error) {
	out := make(groupMap)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return out, errors.Wrap(err, "decode storage document")
	}
	if top == nil {
		return out, errors.New("storage document is not an object")
	}

	for gkey, graw := range top {
		groupID, err := strconv.ParseInt(strings.TrimSpace(gkey), 10, 64)
		if err != nil {
			lg.Warn().Str("group_key", gkey).Msg("skipping group with non-integer id")
			continue
		}
		var users map[string]json.RawMessage
		if err := json.Unmarshal(graw, &users); err != nil || users == nil {
			lg.Warn().Int64("group_id", groupID).Msg("skipping group whose value is not an object")
			continue
		}

		for ukey, uraw := range users {
			rec, err := decodeRecord(ukey, uraw)
			if err != nil {
				lg.Warn().Err(err).Int64("group_id", groupID).Str("user_key", ukey).Msg("skipping invalid record")
				continue
			}
			if out[groupID] == nil {
				out[groupID] = make(map[int64]*domain.NicknameRecord)
			}
			out[groupID][rec.UserID] = rec
		}
	}
	return out, nil
}

func decodeRecord(ukey string, raw json.RawMessage) (*domain.NicknameRecord, error) {
	userID, err := strconv.ParseInt(strings.TrimSpace(ukey), 10, 64)
	if err != nil {
		return nil, errors.New("user id is not an integer")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, errors.New("record is not an object")
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return nil, errors.Errorf("missing field %q", f)
		}
	}

	var fr fileRecord
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil, errors.Wrap(err, "record field has wrong type")
	}
	if fr.UserID != userID {
		return nil, errors.Errorf("user_id %d does not match key", fr.UserID)
	}
	if strings.TrimSpace(fr.Username) == "" {
		return nil, errors.New("empty username")
	}
	// Length is not checked here: lowering the limit must not erase
	// nicknames that were valid when written.
	if fr.Nickname == "" {
		return nil, errors.New("empty nickname")
	}
	addedAt, err := parseTime(fr.AddedAt)
	if err != nil {
		return nil, err
	}

	return &domain.NicknameRecord{
		UserID:   fr.UserID,
		Username: fr.Username,
		Nickname: fr.Nickname,
		AddedAt:  addedAt,
	}, nil
}

// encodeFile renders the whole map. Records that fail to serialize are
// logged and left out; the rest of the document is still written and the
// count of dropped records is returned with it.
func encodeFile(groups groupMap, lg zerolog.Logger) ([]byte, int, error) {
	skipped := 0
	doc := make(map[string]map[string]json.RawMessage, len(groups))
	for groupID, users := range groups {
		gkey := strconv.FormatInt(groupID, 10)
		entries := make(map[string]json.RawMessage, len(users))
		for userID, rec := range users {
			b, err := marshalRecord(rec)
			if err != nil {
				lg.Error().Err(err).Int64("group_id", groupID).Int64("user_id", userID).Msg("failed to serialize record")
				skipped++
				continue
			}
			entries[strconv.FormatInt(userID, 10)] = b
		}
		doc[gkey] = entries
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, skipped, errors.Wrap(err, "encode storage document")
	}
	return buf.Bytes(), skipped, nil
}

func marshalRecord(rec *domain.NicknameRecord) (json.RawMessage, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	if !utf8.ValidString(rec.Nickname) || !utf8.ValidString(rec.Username) {
		return nil, errors.New("record contains invalid UTF-8")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fileRecord{
		UserID:   rec.UserID,
		Username: rec.Username,
		Nickname: rec.Nickname,
		AddedAt:  rec.AddedAt.Format(TimeLayout),
	}); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
