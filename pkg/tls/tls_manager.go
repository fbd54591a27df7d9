// Package tls manages the scripthost's optional HTTPS/WSS listener.
// Keeps the manual-certificate path and the HTTP->HTTPS redirect
// handler; there's no Let's-Encrypt/autocert branch here — a resident
// script host doesn't front a public domain, so automatic certificate
// issuance has nowhere to hang off of.
package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/antibyte/hspc/pkg/configuration"
	"github.com/antibyte/hspc/pkg/logger"
)

// TLSManager handles TLS certificate management for the script host's
// listener.
type TLSManager struct {
	config      *TLSConfig
	tlsConfig   *tls.Config
	initialized bool
}

// TLSConfig holds TLS configuration options.
type TLSConfig struct {
	EnableTLS          bool
	ForceHTTPSRedirect bool
	CertFile           string
	KeyFile            string
	HTTPPort           string
	HTTPSPort          string
}

// NewTLSManager creates a new TLS manager with configuration read from
// cmd/hspihost's settings file.
func NewTLSManager() (*TLSManager, error) {
	config := &TLSConfig{
		EnableTLS:          configuration.GetBool("TLS", "enable_tls", false),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPPort:           configuration.GetString("TLS", "http_port", "8080"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "8443"),
	}

	manager := &TLSManager{config: config}

	if err := manager.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %v", err)
	}

	if config.EnableTLS {
		if err := manager.initializeManualTLS(); err != nil {
			return nil, fmt.Errorf("TLS initialization failed: %v", err)
		}
	}

	return manager, nil
}

func (tm *TLSManager) validateConfig() error {
	if !tm.config.EnableTLS {
		return nil
	}
	if _, err := os.Stat(tm.config.CertFile); os.IsNotExist(err) {
		logger.SecurityWarn("TLS certificate file not found: %s", tm.config.CertFile)
	}
	if _, err := os.Stat(tm.config.KeyFile); os.IsNotExist(err) {
		logger.SecurityWarn("TLS key file not found: %s", tm.config.KeyFile)
	}
	return nil
}

func (tm *TLSManager) initializeManualTLS() error {
	logger.Info(logger.AreaSecurity, "Initializing manual TLS with cert: %s, key: %s", tm.config.CertFile, tm.config.KeyFile)

	if _, err := os.Stat(tm.config.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("certificate file not found: %s", tm.config.CertFile)
	}
	if _, err := os.Stat(tm.config.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("key file not found: %s", tm.config.KeyFile)
	}

	cert, err := tls.LoadX509KeyPair(tm.config.CertFile, tm.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate pair: %v", err)
	}

	tm.tlsConfig = &tls.Config{
		Certificates:             []tls.Certificate{cert},
		MinVersion:               tls.VersionTLS12,
		PreferServerCipherSuites: true,
	}

	tm.initialized = true
	logger.Info(logger.AreaSecurity, "Manual TLS manager initialized successfully")
	return nil
}

// GetTLSConfig returns the TLS configuration for the listener.
func (tm *TLSManager) GetTLSConfig() *tls.Config {
	if !tm.initialized || !tm.config.EnableTLS {
		return nil
	}
	return tm.tlsConfig
}

// NeedsHTTPServer returns true if a plain HTTP listener is still needed
// alongside the HTTPS one, for redirect purposes.
func (tm *TLSManager) NeedsHTTPServer() bool {
	return tm.config.EnableTLS && tm.config.ForceHTTPSRedirect
}

// GetHTTPSRedirectHandler returns a handler that redirects HTTP to HTTPS.
func (tm *TLSManager) GetHTTPSRedirectHandler() http.Handler {
	if !tm.config.ForceHTTPSRedirect {
		return nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if strings.Contains(host, ":") {
			host = strings.Split(host, ":")[0]
		}

		httpsURL := fmt.Sprintf("https://%s", host)
		if tm.config.HTTPSPort != "443" {
			httpsURL = fmt.Sprintf("https://%s:%s", host, tm.config.HTTPSPort)
		}
		httpsURL += r.RequestURI

		logger.Debug("Redirecting HTTP to HTTPS: %s -> %s", r.URL.String(), httpsURL)
		http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
	})
}

// IsEnabled returns true if TLS is enabled.
func (tm *TLSManager) IsEnabled() bool {
	return tm.config.EnableTLS
}

// GetHTTPPort returns the HTTP port.
func (tm *TLSManager) GetHTTPPort() string {
	return tm.config.HTTPPort
}

// GetHTTPSPort returns the HTTPS port.
func (tm *TLSManager) GetHTTPSPort() string {
	return tm.config.HTTPSPort
}

// GetCertFiles returns the certificate and key file paths.
func (tm *TLSManager) GetCertFiles() (string, string) {
	return tm.config.CertFile, tm.config.KeyFile
}
