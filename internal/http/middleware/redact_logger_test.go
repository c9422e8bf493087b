package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nickname-bot/internal/telegram"
)

const sampleToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"":                              "",
		"plain":                         "plain",
		"token=" + sampleToken:          "token=[REDACTED:token]",
		"/bot" + sampleToken + "/getMe": "/bot[REDACTED:token]/getMe",
		"mail a@b.com":                  "mail [REDACTED:email]",
		"id=123e4567-e89b-12d3-a456-426614174000": "id=[REDACTED:id]",
		"call 555-123-4567":                       "call [REDACTED:phone]",
	}
	for in, want := range cases {
		if got := Redact(in); got != want {
			t.Fatalf("Redact(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/api/v1/groups/:id/nicknames", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=a.b+tag@example.com&id=123e4567-e89b-12d3-a456-426614174000&t=" + sampleToken
	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/-100/nicknames?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set(telegram.SecretTokenHeader, "webhook-secret")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000")
	req.Header.Set(requestIDHeader, "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"message":"http_request"`,
		`"path":"/api/v1/groups/:id/nicknames"`,
		`"request_id":"rid-req"`,
		`[REDACTED:email]`,
		`[REDACTED:id]`,
		`[REDACTED:token]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Telegram-Bot-Api-Secret-Token":"[REDACTED]"`,
		`"X-Custom":"email [REDACTED:email] id=[REDACTED:id]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %s in log, got: %s", want, logs)
		}
	}
	for _, leaked := range []string{"topsecret", "webhook-secret", "shhh", sampleToken} {
		if strings.Contains(logs, leaked) {
			t.Fatalf("secret %q leaked into logs: %s", leaked, logs)
		}
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	r.GET("/ginerr", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusOK)
	})

	cases := []struct{ path, level string }{
		{"/warn", `"level":"warn"`},
		{"/error", `"level":"error"`},
		{"/ginerr", `"level":"error"`},
		{"/bot" + sampleToken, `"level":"warn"`}, // unmatched: raw path, redacted
	}
	for _, tc := range cases {
		buf := captureLogger(t)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		if !strings.Contains(buf.String(), tc.level) {
			t.Fatalf("%s: expected %s, got %s", tc.path, tc.level, buf.String())
		}
		if strings.Contains(buf.String(), sampleToken) {
			t.Fatalf("%s: token leaked: %s", tc.path, buf.String())
		}
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }
