package env

import "testing"

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("WACART_TEST_VALUE", "   ")
	if got := Get("WACART_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("WACART_TEST_VALUE", "set")
	if got := Get("WACART_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestServiceName(t *testing.T) {
	t.Setenv("WACART_SERVICE_NAME", "")
	if got := ServiceName("api"); got != "api" {
		t.Fatalf("expected api, got %q", got)
	}
	t.Setenv("WACART_SERVICE_NAME", "api-canary")
	if got := ServiceName("api"); got != "api-canary" {
		t.Fatalf("expected override, got %q", got)
	}
}
