package tlsutil

import (
	"crypto/tls"
	"testing"
	"time"
)

func TestTLSConfig(t *testing.T) {
	cfg := TLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want %d", cfg.MinVersion, tls.VersionTLS12)
	}
	if len(cfg.CipherSuites) == 0 {
		t.Error("CipherSuites should not be empty")
	}
}

func TestSecureHTTPClient(t *testing.T) {
	client := SecureHTTPClient(45 * time.Second)
	if client.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("Transport should be configured")
	}
}
