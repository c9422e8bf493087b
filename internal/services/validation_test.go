package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeNickname(t *testing.T) {
	cases := map[string]string{
		"  Cool   User  ":   "Cool User",
		"tab\there":         "tab here",
		"line\nbreak\r\n":   "line break",
		"nul\x00byte":       "nul byte",
		"c1\u0085control":   "c1 control",
		"ｆｕｌｌｗｉｄｔｈ":         "fullwidth",
		"non\u00a0breaking": "non breaking",
		"":                  "",
		" \t\n ":            "",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeNickname(in), "input %q", in)
	}
}

func TestSanitizeArgs(t *testing.T) {
	got := SanitizeArgs([]string{" a ", "", "\t", "b\nc"})
	require.Equal(t, []string{"a", "b c"}, got)
	require.Empty(t, SanitizeArgs(nil))
}

func TestValidateNickname_Valid(t *testing.T) {
	for _, in := range []string{"Ali", "Cool User 123", "a-b_c.d!", "x(y)[z]{w}", "  spaced   out  ", strings.Repeat("a", 50)} {
		got, err := ValidateNickname(in, 50)
		require.NoError(t, err, in)
		require.Equal(t, SanitizeNickname(in), got)
	}
}

func TestValidateNickname_Rejected(t *testing.T) {
	cases := []struct {
		in     string
		reason string
	}{
		{"", "cannot be empty"},
		{"   ", "cannot be empty"},
		{strings.Repeat("a", 51), "too long"},
		{"<script>x", "harmful"},
		{"JavaScript:void", "harmful"},
		{"my data:set", "harmful"},
		{"eval(1)", "harmful"},
		{"document.cookie", "harmful"},
		{`\x41bc`, "harmful"},
		{"50%20off", "harmful"},
		{"héllo", "invalid characters"},
		{"emoji 😀", "invalid characters"},
		{"quote\"", "invalid characters"},
	}
	for _, c := range cases {
		_, err := ValidateNickname(c.in, 50)
		require.Error(t, err, c.in)
		require.True(t, IsValidation(err), c.in)
		require.Contains(t, err.Error(), c.reason, c.in)
	}
}

func TestValidateNickname_CustomMaxLen(t *testing.T) {
	_, err := ValidateNickname("abcdef", 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "5 characters or less")

	got, err := ValidateNickname("abcde", 0)
	require.NoError(t, err)
	require.Equal(t, "abcde", got)
}

func TestValidateUserContext(t *testing.T) {
	require.NoError(t, ValidateUserContext(111, "alice", -1001))
	require.NoError(t, ValidateUserContext(111, "user_111", -1))

	require.Error(t, ValidateUserContext(0, "alice", -1001))
	require.Error(t, ValidateUserContext(-5, "alice", -1001))
	require.Error(t, ValidateUserContext(111, "", -1001))
	require.Error(t, ValidateUserContext(111, "alice", 0))
	require.Error(t, ValidateUserContext(111, "alice", 42))
	require.Error(t, ValidateUserContext(111, "bad name", -1001))
	require.Error(t, ValidateUserContext(111, strings.Repeat("a", 33), -1001))
}
