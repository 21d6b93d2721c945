package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_ENV_TEST", "")
	if got := Get("STOREFRONT_ENV_TEST", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("STOREFRONT_ENV_TEST", "console")
	if got := Get("STOREFRONT_ENV_TEST", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STOREFRONT_APP_PORT", "8081")
	if got := First("8080", "PORT", "STOREFRONT_APP_PORT"); got != "8081" {
		t.Fatalf("expected 8081, got %q", got)
	}
	t.Setenv("PORT", "9000")
	if got := First("8080", "PORT", "STOREFRONT_APP_PORT"); got != "9000" {
		t.Fatalf("expected 9000, got %q", got)
	}
}
