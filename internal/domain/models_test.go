package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNicknameRecord_JSONFieldNames(t *testing.T) {
	rec := NicknameRecord{
		UserID:   111,
		Username: "alice",
		Nickname: "Ally",
		AddedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(b)
	for _, key := range []string{`"user_id":111`, `"username":"alice"`, `"nickname":"Ally"`, `"added_at":"2025-01-02T03:04:05Z"`} {
		if !strings.Contains(got, key) {
			t.Fatalf("expected %s in %s", key, got)
		}
	}
}

func TestGroupSummary_JSON(t *testing.T) {
	b, err := json.Marshal(GroupSummary{GroupID: -100, Count: 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"group_id":-100,"count":2}` {
		t.Fatalf("unexpected json %s", b)
	}
}
