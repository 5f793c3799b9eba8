package util

import (
	"net"
	"testing"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"1.2.3.4", 12345, "1.2.3.4:12345"},
		{"::1", 443, "[::1]:443"},
		{"", 12345, ":12345"},
	}
	for _, tt := range tests {
		if got := FormatAddr(tt.host, tt.port); got != tt.want {
			t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("port %d out of range", port)
	}

	ln, err := net.Listen("tcp", FormatAddr("127.0.0.1", port))
	if err != nil {
		t.Fatalf("returned port should be bindable: %v", err)
	}
	ln.Close()
}
