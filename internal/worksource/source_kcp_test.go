package worksource

import (
	"testing"
)

func TestNewKCPSourceDerivesKeyMaterial(t *testing.T) {
	s, err := NewKCPSource(KCPConfig{RemoteAddr: "127.0.0.1:1", Key: "secret"})
	if err != nil {
		t.Fatalf("NewKCPSource: %v", err)
	}
	if s.block == nil {
		t.Fatalf("expected a non-nil BlockCrypt")
	}
	if len(s.hmacKey) == 0 {
		t.Fatalf("expected a non-empty hmac key")
	}
	if s.qppPad != nil {
		t.Fatalf("expected no QPP pad when Obfuscate is unset")
	}
}

func TestNewKCPSourceBuildsQPPPadWhenObfuscateSet(t *testing.T) {
	s, err := NewKCPSource(KCPConfig{RemoteAddr: "127.0.0.1:1", Key: "secret", Obfuscate: true, QPPCount: 16})
	if err != nil {
		t.Fatalf("NewKCPSource: %v", err)
	}
	if s.qppPad == nil {
		t.Fatalf("expected a QPP pad when Obfuscate is set")
	}
}

func TestSignTagDeterministicAndKeyDependent(t *testing.T) {
	a, err := NewKCPSource(KCPConfig{RemoteAddr: "x", Key: "keyA"})
	if err != nil {
		t.Fatalf("NewKCPSource: %v", err)
	}
	b, err := NewKCPSource(KCPConfig{RemoteAddr: "x", Key: "keyB"})
	if err != nil {
		t.Fatalf("NewKCPSource: %v", err)
	}

	const hdr = "deadbeef"
	tag1 := a.signTag(hdr)
	tag2 := a.signTag(hdr)
	if tag1 != tag2 {
		t.Fatalf("signTag is not deterministic: %s != %s", tag1, tag2)
	}
	if len(tag1) != 64 {
		t.Fatalf("signTag length = %d, want 64 hex chars for a SHA-256 HMAC", len(tag1))
	}
	if tag1 == b.signTag(hdr) {
		t.Fatalf("expected signTag to depend on the session key")
	}
}

func TestDialConnWithoutTCPReturnsNoPacketConn(t *testing.T) {
	s, err := NewKCPSource(KCPConfig{RemoteAddr: "127.0.0.1:1", Key: "k"})
	if err != nil {
		t.Fatalf("NewKCPSource: %v", err)
	}
	conn, addr, err := s.dialConn()
	if err != nil {
		t.Fatalf("dialConn: %v", err)
	}
	if conn != nil || addr != nil {
		t.Fatalf("expected dialConn to no-op when UseTCP is unset, got conn=%v addr=%v", conn, addr)
	}
}

func TestCloseWithoutSessionIsNoop(t *testing.T) {
	s, err := NewKCPSource(KCPConfig{RemoteAddr: "127.0.0.1:1", Key: "k"})
	if err != nil {
		t.Fatalf("NewKCPSource: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on a never-dialed source: %v", err)
	}
}
