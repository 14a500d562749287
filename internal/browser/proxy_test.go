package browser

import (
	"strings"
	"testing"
)

func TestParseProxy(t *testing.T) {
	p, err := ParseProxy("1.2.3.4:8080:bob:pw")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := p.URL(); got != "http://bob:pw@1.2.3.4:8080" {
		t.Fatalf("URL() = %q", got)
	}
	if got := p.Server(); got != "http://1.2.3.4:8080" {
		t.Fatalf("Server() = %q", got)
	}
}

func TestParseProxy_Malformed(t *testing.T) {
	for _, s := range []string{"bad", "", "1.2.3.4:8080", "1.2.3.4:8080:bob", "a:b:c:d:e", "1.2.3.4:8080:bob:pw:extra"} {
		if _, err := ParseProxy(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestParseProxy_EmptyFieldsAccepted(t *testing.T) {
	p, err := ParseProxy("h:1::pw")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Host != "h" || p.Port != "1" || p.Username != "" || p.Password != "pw" {
		t.Fatalf("unexpected proxy: %+v", p)
	}
	if _, err := ParseProxy(":::"); err != nil {
		t.Fatalf("four empty fields: %v", err)
	}
}

func TestParseProxy_ErrorRedactsPassword(t *testing.T) {
	_, err := ParseProxy("1.2.3.4:8080:bob:secret:extra")
	if err == nil || strings.Contains(err.Error(), "secret") {
		t.Fatalf("password leaked or no error: %v", err)
	}
}

func TestRotator(t *testing.T) {
	if NewRotator([]string{"bad", ""}) != nil {
		t.Fatal("expected nil rotator when no proxy is usable")
	}
	r := NewRotator([]string{"a:1:u:p", "b:2:u:p"})
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
	if r.Next().Host != "a" || r.Next().Host != "b" || r.Next().Host != "a" {
		t.Fatal("unexpected rotation order")
	}
}

func TestPickUserAgent(t *testing.T) {
	if got := pickUserAgent("  mine  ", nil); got != "mine" {
		t.Fatalf("got %q", got)
	}
	if got := pickUserAgent("", func(int) int { return 3 }); got != UserAgents[3] {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultStealth(t *testing.T) {
	s := DefaultStealth
	for _, needle := range []string{"webdriver", "plugins", "languages", "permissions"} {
		if !strings.Contains(s.Script, needle) {
			t.Fatalf("stealth script missing %q", needle)
		}
	}
	if v, ok := s.Flags["enable-automation"]; !ok || v != false {
		t.Fatal("automation switch must be disabled")
	}
	if s.Version == "" {
		t.Fatal("stealth payload must be versioned")
	}
}
