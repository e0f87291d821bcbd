package public

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/limits"
	"github.com/voicepartnerai/platform/internal/store"
)

func echoExtractedKey(t *testing.T, headers map[string]string) string {
	t.Helper()
	app := fiber.New()
	app.Get("/echo", func(c *fiber.Ctx) error {
		return c.SendString(extractAPIKey(c))
	})

	req := httptest.NewRequest("GET", "/echo", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestExtractAPIKey(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"x-api-key header", map[string]string{"X-API-Key": "vpa_secret"}, "vpa_secret"},
		{"bearer token", map[string]string{"Authorization": "Bearer vpa_secret"}, "vpa_secret"},
		{"bearer lowercase", map[string]string{"Authorization": "bearer vpa_secret"}, "vpa_secret"},
		{"x-api-key wins over bearer", map[string]string{"X-API-Key": "vpa_a", "Authorization": "Bearer vpa_b"}, "vpa_a"},
		{"basic auth ignored", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, ""},
		{"no headers", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := echoExtractedKey(t, tc.headers); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSetRateLimitHeaders(t *testing.T) {
	app := fiber.New()
	app.Get("/echo", func(c *fiber.Ctx) error {
		key := store.APIKey{RateLimitPerMinute: 60, RateLimitPerHour: 1000, RateLimitPerDay: 10000}
		result := limits.Result{RemainingMinute: 59, RemainingHour: 990, RemainingDay: 9000}
		setRateLimitHeaders(c, key, result)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/echo", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	want := map[string]string{
		"X-RateLimit-Limit-Minute":     "60",
		"X-RateLimit-Remaining-Minute": "59",
		"X-RateLimit-Limit-Hour":       "1000",
		"X-RateLimit-Remaining-Hour":   "990",
		"X-RateLimit-Limit-Day":        "10000",
		"X-RateLimit-Remaining-Day":    "9000",
	}
	for header, value := range want {
		if got := resp.Header.Get(header); got != value {
			t.Fatalf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestRetryAfterPerWindow(t *testing.T) {
	if got := retryAfter(limits.LimitTypeMinute); got != "60" {
		t.Fatalf("minute: %s", got)
	}
	if got := retryAfter(limits.LimitTypeHour); got != "3600" {
		t.Fatalf("hour: %s", got)
	}
	if got := retryAfter(limits.LimitTypeDay); got != "86400" {
		t.Fatalf("day: %s", got)
	}
}
