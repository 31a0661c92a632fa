package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("FANOUT_TEST_VALUE", "set")

	if got := GetEnvOrDefault("FANOUT_TEST_VALUE", "default"); got != "set" {
		t.Errorf("GetEnvOrDefault() = %q, want set", got)
	}
	if got := GetEnvOrDefault("FANOUT_TEST_UNSET", "default"); got != "default" {
		t.Errorf("GetEnvOrDefault() = %q, want default", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("FANOUT_TEST_DURATION", "45s")
	t.Setenv("FANOUT_TEST_BAD_DURATION", "soon")

	if got := GetEnvDuration("FANOUT_TEST_DURATION", time.Second); got != 45*time.Second {
		t.Errorf("GetEnvDuration() = %v, want 45s", got)
	}
	if got := GetEnvDuration("FANOUT_TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration() with bad value = %v, want 1s", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FANOUT_TEST_BOOL", "true")

	if !GetEnvBool("FANOUT_TEST_BOOL", false) {
		t.Error("GetEnvBool() = false, want true")
	}
	if GetEnvBool("FANOUT_TEST_BOOL_UNSET", false) {
		t.Error("GetEnvBool() unset = true, want false")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("FANOUT_TEST_INT", "3")
	t.Setenv("FANOUT_TEST_BAD_INT", "three")

	if got := GetEnvInt("FANOUT_TEST_INT", 0); got != 3 {
		t.Errorf("GetEnvInt() = %d, want 3", got)
	}
	if got := GetEnvInt("FANOUT_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt() with bad value = %d, want 7", got)
	}
}

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+15550001111", "+1555***1111"},
		{"12345", "***"},
		{"", "***"},
	}

	for _, tt := range tests {
		if got := MaskAddress(tt.in); got != tt.want {
			t.Errorf("MaskAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("ConnectRedis() error = %v", err)
	}
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	if _, err := ConnectRedis(context.Background(), addr); err == nil {
		t.Error("ConnectRedis() on closed server error = nil, want error")
	}
}
