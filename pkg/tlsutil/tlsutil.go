// Package tlsutil loads TLS credentials for the import gRPC server and
// generates throwaway certificates for local runs and tests.
package tlsutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc/credentials"
)

// ServerFiles names the PEM files the gRPC server is configured with.
// ClientCAFile is optional; when set, callers must present a certificate
// signed by it.
type ServerFiles struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// Enabled reports whether any server TLS file is configured.
func (f ServerFiles) Enabled() bool {
	return f.CertFile != "" || f.KeyFile != ""
}

// ServerCredentials builds gRPC transport credentials from f. It returns nil
// credentials when TLS is not configured, meaning plaintext.
func ServerCredentials(f ServerFiles) (credentials.TransportCredentials, error) {
	if !f.Enabled() {
		if f.ClientCAFile != "" {
			return nil, errors.New("tlsutil: client CA requires a server key pair")
		}
		return nil, nil
	}
	if f.CertFile == "" || f.KeyFile == "" {
		return nil, errors.New("tlsutil: both cert and key files are required")
	}

	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load server key pair: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if f.ClientCAFile != "" {
		pool, err := loadPool(f.ClientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return credentials.NewTLS(cfg), nil
}

func loadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("tlsutil: no certificates in %s", path)
	}
	return pool, nil
}

// Dev certificate file names written by GenerateDevCerts.
const (
	CAFile        = "ca.pem"
	ServerFile    = "server.pem"
	ServerKeyFile = "server-key.pem"
	ClientFile    = "client.pem"
	ClientKeyFile = "client-key.pem"
)

// GenerateDevCerts writes a throwaway CA plus a server key pair for hosts and
// a client key pair for the batch runner, all signed by that CA. The CA key
// is not kept.
func GenerateDevCerts(hosts []string, outDir string) error {
	if len(hosts) == 0 {
		return errors.New("tlsutil: at least one host is required")
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return fmt.Errorf("tlsutil: mkdir %s: %w", outDir, err)
	}

	now := time.Now()
	ca := &x509.Certificate{
		Subject:               pkix.Name{CommonName: "consulta-produtos dev CA"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caCert, caKey, err := issue(ca, nil, nil)
	if err != nil {
		return fmt.Errorf("tlsutil: CA: %w", err)
	}
	if err := writePEM(filepath.Join(outDir, CAFile), "CERTIFICATE", caCert.Raw); err != nil {
		return err
	}

	server := leaf("importd", now, x509.ExtKeyUsageServerAuth)
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			server.IPAddresses = append(server.IPAddresses, ip)
		} else {
			server.DNSNames = append(server.DNSNames, h)
		}
	}
	if err := issueTo(outDir, ServerFile, ServerKeyFile, server, caCert, caKey); err != nil {
		return fmt.Errorf("tlsutil: server: %w", err)
	}

	client := leaf("import-batch", now, x509.ExtKeyUsageClientAuth)
	if err := issueTo(outDir, ClientFile, ClientKeyFile, client, caCert, caKey); err != nil {
		return fmt.Errorf("tlsutil: client: %w", err)
	}
	return nil
}

func leaf(cn string, now time.Time, usage x509.ExtKeyUsage) *x509.Certificate {
	return &x509.Certificate{
		Subject:     pkix.Name{CommonName: cn},
		NotBefore:   now.Add(-time.Minute),
		NotAfter:    now.AddDate(0, 3, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{usage},
	}
}

// issue signs tmpl with a fresh P-256 key. A nil parent self-signs.
func issue(tmpl, parent *x509.Certificate, parentKey crypto.Signer) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}
	tmpl.SerialNumber = serial
	if parent == nil {
		parent, parentKey = tmpl, key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

func issueTo(dir, certName, keyName string, tmpl, parent *x509.Certificate, parentKey crypto.Signer) error {
	cert, key, err := issue(tmpl, parent, parentKey)
	if err != nil {
		return err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	if err := writePEM(filepath.Join(dir, certName), "CERTIFICATE", cert.Raw); err != nil {
		return err
	}
	return writePEM(filepath.Join(dir, keyName), "PRIVATE KEY", keyDER)
}

func writePEM(path, blockType string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("tlsutil: write %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: data}); err != nil {
		f.Close()
		return fmt.Errorf("tlsutil: write %s: %w", path, err)
	}
	return f.Close()
}
