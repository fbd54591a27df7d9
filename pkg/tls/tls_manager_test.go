package tls

import (
	"testing"

	"github.com/antibyte/hspc/pkg/configuration"
)

func TestTLSManagerCreation(t *testing.T) {
	if err := configuration.Initialize("../../settings.cfg"); err != nil {
		t.Skipf("Configuration file not found: %v", err)
	}

	manager, err := NewTLSManager()
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}

	if manager.IsEnabled() {
		t.Error("TLS should be disabled by default")
	}

	if manager.GetHTTPPort() == "" {
		t.Error("HTTP port should be set")
	}
}

func TestTLSConfigValidation(t *testing.T) {
	config := &TLSConfig{
		EnableTLS: true,
		CertFile:  "./does-not-exist.crt",
		KeyFile:   "./does-not-exist.key",
	}

	manager := &TLSManager{config: config}

	// validateConfig only warns about missing manual cert/key files, it
	// never errors on them — initializeManualTLS is what fails hard.
	if err := manager.validateConfig(); err != nil {
		t.Errorf("validateConfig() with missing manual cert files should not error, got: %v", err)
	}

	if err := manager.initializeManualTLS(); err == nil {
		t.Error("expected initializeManualTLS to fail for missing cert/key files")
	}
}

func TestTLSManagerMethods(t *testing.T) {
	if err := configuration.Initialize("../../settings.cfg"); err != nil {
		t.Skipf("Configuration file not found: %v", err)
	}

	manager, err := NewTLSManager()
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}

	if manager.GetTLSConfig() != nil && !manager.IsEnabled() {
		t.Error("TLS config should be nil when TLS is disabled")
	}

	httpPort := manager.GetHTTPPort()
	httpsPort := manager.GetHTTPSPort()
	if httpPort == "" {
		t.Error("HTTP port should not be empty")
	}
	if httpsPort == "" {
		t.Error("HTTPS port should not be empty")
	}

	certFile, keyFile := manager.GetCertFiles()
	if certFile == "" || keyFile == "" {
		t.Error("Certificate file paths should not be empty")
	}
}

func TestTLSRedirectHandler(t *testing.T) {
	if err := configuration.Initialize("../../settings.cfg"); err != nil {
		t.Skipf("Configuration file not found: %v", err)
	}

	manager, err := NewTLSManager()
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}

	redirectHandler := manager.GetHTTPSRedirectHandler()
	if redirectHandler != nil && !manager.config.ForceHTTPSRedirect {
		t.Error("Redirect handler should be nil when HTTPS redirect is disabled")
	}

	needsHTTP := manager.NeedsHTTPServer()
	expectedNeedsHTTP := manager.config.EnableTLS && manager.config.ForceHTTPSRedirect
	if needsHTTP != expectedNeedsHTTP {
		t.Errorf("NeedsHTTPServer() = %v, expected %v", needsHTTP, expectedNeedsHTTP)
	}
}
