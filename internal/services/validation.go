package services

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultNicknameMaxLen is used when a caller passes a non-positive limit.
const DefaultNicknameMaxLen = 50

var (
	// controlRE matches C0 controls, DEL and C1 controls.
	controlRE = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)

	// whitespaceRE collapses consecutive whitespace to a single space.
	whitespaceRE = regexp.MustCompile(`\s+`)

	allowedNicknameRE = regexp.MustCompile("^[a-zA-Z0-9 \\-_.!@#$%^&*()+=\\[\\]{}|;:,<>?~`]+$")

	usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{1,32}$`)

	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)data:`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)onload=`),
		regexp.MustCompile(`(?i)onerror=`),
		regexp.MustCompile(`(?i)onclick=`),
		regexp.MustCompile(`(?i)eval\(`),
		regexp.MustCompile(`(?i)alert\(`),
		regexp.MustCompile(`(?i)document\.`),
		regexp.MustCompile(`(?i)window\.`),
		regexp.MustCompile(`(?i)location\.`),
		regexp.MustCompile(`(?i)href=`),
		regexp.MustCompile(`(?i)src=`),
		regexp.MustCompile(`(?i)\\x[0-9a-f]{2}`),
		regexp.MustCompile(`(?i)%[0-9a-f]{2}`),
	}
)

// SanitizeNickname applies NFKC normalization, turns control characters into
// spaces, collapses runs of whitespace and trims the result.
func SanitizeNickname(s string) string {
	s = norm.NFKC.String(s)
	s = controlRE.ReplaceAllString(s, " ")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeArgs sanitizes each command argument and drops the empty ones.
func SanitizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a = SanitizeNickname(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// ValidateNickname checks raw user input and returns the sanitized nickname.
// Suspicious content is rejected before sanitizing so that encoded payloads
// cannot slip through normalization.
func ValidateNickname(raw string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultNicknameMaxLen
	}
	if containsSuspicious(raw) {
		return "", &ValidationError{Field: "nickname", Reason: "Nickname contains potentially harmful content. Please choose a different nickname."}
	}

	s := SanitizeNickname(raw)
	switch {
	case s == "":
		return "", &ValidationError{Field: "nickname", Reason: "Nickname cannot be empty. Please provide a valid nickname."}
	case len([]rune(s)) > maxLen:
		return "", &ValidationError{Field: "nickname", Reason: fmt.Sprintf("Nickname is too long. Please use a nickname with %d characters or less.", maxLen)}
	case !allowedNicknameRE.MatchString(s):
		return "", &ValidationError{Field: "nickname", Reason: "Nickname contains invalid characters. Please use only letters, numbers, spaces, and common symbols."}
	case strings.Contains(s, "  "):
		return "", &ValidationError{Field: "nickname", Reason: "Nickname cannot contain multiple consecutive spaces."}
	case s != strings.TrimSpace(s):
		return "", &ValidationError{Field: "nickname", Reason: "Nickname cannot start or end with spaces."}
	}
	return s, nil
}

func containsSuspicious(s string) bool {
	for _, re := range suspiciousPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ValidateUserContext checks the identity a command arrived with. Telegram
// users have positive ids and groups negative ones.
func ValidateUserContext(userID int64, username string, groupID int64) error {
	switch {
	case userID <= 0:
		return &ValidationError{Field: "user_id", Reason: "Invalid user ID format"}
	case strings.TrimSpace(username) == "":
		return &ValidationError{Field: "username", Reason: "Invalid username"}
	case groupID >= 0:
		return &ValidationError{Field: "group_id", Reason: "Invalid group ID format"}
	case !usernameRE.MatchString(username):
		return &ValidationError{Field: "username", Reason: "Invalid username format"}
	}
	return nil
}
