package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:    "first public forwarded entry wins",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.5, 8.8.8.8"},
			want:    "8.8.8.8",
		},
		{
			name:       "private forwarded entry falls through to remote",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			remoteAddr: "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name: "real ip after forwarded chain",
			headers: map[string]string{
				"X-Forwarded-For": "172.16.4.4",
				"X-Real-IP":       "198.51.100.7",
			},
			want: "198.51.100.7",
		},
		{
			name: "cloudflare header after real ip",
			headers: map[string]string{
				"X-Real-IP":        "127.0.0.1",
				"CF-Connecting-IP": "1.1.1.1",
			},
			want: "1.1.1.1",
		},
		{
			name:       "remote address port is stripped",
			remoteAddr: "203.0.113.9:54321",
			want:       "203.0.113.9",
		},
		{
			name:       "private remote address is still returned",
			remoteAddr: "10.1.2.3:80",
			want:       "10.1.2.3",
		},
		{
			name:       "bracketed ipv6 remote",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name: "nothing present",
			want: Unspecified,
		},
		{
			name:    "mapped private forwarded entry is skipped",
			headers: map[string]string{"X-Forwarded-For": "::ffff:192.168.0.10, 9.9.9.9"},
			want:    "9.9.9.9",
		},
		{
			name:    "unknown token in forwarded chain is skipped",
			headers: map[string]string{"X-Forwarded-For": "unknown, 8.8.8.8"},
			want:    "8.8.8.8",
		},
		{
			name:       "only garbage forwarded falls through to remote",
			headers:    map[string]string{"X-Forwarded-For": "unknown, _hidden"},
			remoteAddr: "203.0.113.9:1234",
			want:       "203.0.113.9",
		},
		{
			name:    "forwarded entry with port",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1:80, 198.51.100.2:4711"},
			want:    "198.51.100.2",
		},
		{
			name:    "bracketed ipv6 forwarded entry with port",
			headers: map[string]string{"X-Forwarded-For": "[2001:db8::7]:443"},
			want:    "2001:db8::7",
		},
		{
			name: "garbage real ip falls through to cloudflare",
			headers: map[string]string{
				"X-Real-IP":        "unknown",
				"CF-Connecting-IP": "1.0.0.1",
			},
			want: "1.0.0.1",
		},
		{
			name:       "localhost forwarded is private",
			headers:    map[string]string{"X-Forwarded-For": "localhost"},
			remoteAddr: "203.0.113.9",
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			if got := Resolve(h, tt.remoteAddr); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_MultipleForwardedHeaderLines(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Add("X-Forwarded-For", "10.0.0.1")
	h.Add("X-Forwarded-For", "8.8.4.4")

	if got := Resolve(h, ""); got != "8.8.4.4" {
		t.Errorf("Resolve() = %q, want 8.8.4.4", got)
	}
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/r/abc", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	if got := FromRequest(req); got != "192.0.2.1" {
		t.Errorf("FromRequest() = %q, want 192.0.2.1", got)
	}
}

func TestIsPrivate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"localhost", true},
		{"LOCALHOST", true},
		{"::ffff:10.0.0.1", true},
		{"::ffff:127.0.0.1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			if got := IsPrivate(tt.ip); got != tt.want {
				t.Errorf("IsPrivate(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestIsRoutable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip   string
		want bool
	}{
		{"8.8.8.8", true},
		{"::ffff:8.8.8.8", true},
		{"2001:4860:4860::8888", true},
		{"127.0.0.1", false},
		{"127.0.0.2", false},
		{"0.0.0.0", false},
		{"192.168.0.1", false},
		{"169.254.1.1", false},
		{"garbage", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			if got := IsRoutable(tt.ip); got != tt.want {
				t.Errorf("IsRoutable(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}
