package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafOf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return leaf
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup    func(t *testing.T, certDir string)
		validate func(t *testing.T, certDir string, cert tls.Certificate)
		name     string
		wantErr  bool
	}{
		{
			name:  "creates a certificate when none exists",
			setup: func(*testing.T, string) {},
			validate: func(t *testing.T, _ string, cert tls.Certificate) {
				t.Helper()
				leaf := leafOf(t, cert)
				assert.Equal(t, "spice-tally", leaf.Subject.Organization[0])
				assert.Contains(t, leaf.DNSNames, "localhost")
				assert.Len(t, leaf.IPAddresses, 2)
				assert.True(t, leaf.NotAfter.After(time.Now().Add(364*24*time.Hour)))
				assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
			},
		},
		{
			name: "reuses a valid certificate",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				_, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
			},
			validate: func(t *testing.T, certDir string, cert tls.Certificate) {
				t.Helper()
				again, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
				assert.Equal(t, leafOf(t, cert).SerialNumber, leafOf(t, again).SerialNumber)
			},
		},
		{
			name: "regenerates unreadable files",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(certDir, 0o700))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, certFileName), []byte("garbage"), 0o600))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, keyFileName), []byte("garbage"), 0o600))
			},
			validate: func(t *testing.T, _ string, cert tls.Certificate) {
				t.Helper()
				assert.True(t, leafOf(t, cert).NotBefore.After(time.Now().Add(-2*time.Minute)))
			},
		},
		{
			name: "fails when the directory is a file",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(filepath.Dir(certDir), 0o700))
				require.NoError(t, os.WriteFile(certDir, []byte("not a directory"), 0o600))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certDir := filepath.Join(t.TempDir(), "certs")
			tt.setup(t, certDir)

			cert, err := NewFileManager(certDir).GetOrCreateCertificate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, certDir, cert)
		})
	}
}

func TestFileManager_CustomHosts(t *testing.T) {
	certDir := t.TempDir()

	cert, err := NewFileManager(certDir, "tally.internal", "10.0.0.5").GetOrCreateCertificate()
	require.NoError(t, err)

	leaf := leafOf(t, cert)
	assert.Equal(t, []string{"tally.internal"}, leaf.DNSNames)
	assert.NoError(t, leaf.VerifyHostname("10.0.0.5"))
	assert.Error(t, leaf.VerifyHostname("localhost"))

	// A manager for other hosts replaces the certificate.
	cert, err = NewFileManager(certDir).GetOrCreateCertificate()
	require.NoError(t, err)
	assert.Contains(t, leafOf(t, cert).DNSNames, "localhost")
}

func TestFileManager_CertificateExists(t *testing.T) {
	certDir := t.TempDir()
	m := NewFileManager(certDir)

	exists, err := m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(filepath.Join(certDir, certFileName), []byte("x"), 0o600))
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists, "key file is still missing")

	_, err = m.GetOrCreateCertificate()
	require.NoError(t, err)
	exists, err = m.CertificateExists()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileManager_verifyCertificate(t *testing.T) {
	m := NewFileManager(t.TempDir())
	cert, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	require.NoError(t, m.verifyCertificate(cert, time.Now()))
	assert.ErrorContains(t, m.verifyCertificate(cert, time.Now().Add(365*24*time.Hour)), "expires soon")
	assert.ErrorContains(t, m.verifyCertificate(cert, time.Now().Add(-time.Hour)), "not yet valid")
	assert.ErrorContains(t, m.verifyCertificate(tls.Certificate{}, time.Now()), "no certificates")
}
