// Package pki creates and reads the self-signed certificates lnd daemons
// serve. It is used for local and test daemons; production daemons generate
// their own.
package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// lnd's default autogenerated certificate lifetime.
	certValidity = 14 * 30 * 24 * time.Hour

	defaultOrganization = "lnd autogenerated cert"
)

// SelfSignedConfig describes the certificate to generate.
type SelfSignedConfig struct {
	Organization string
	// Hosts are extra SANs; IP literals become IP SANs, anything else a DNS SAN.
	Hosts []string
	// BaseName names the output files (<BaseName>.cert, <BaseName>.key).
	BaseName string
}

// GenerateSelfSigned writes an ECDSA P-256 self-signed certificate and key to
// outDir, the way lnd lays out tls.cert and tls.key.
func GenerateSelfSigned(outDir string, cfg SelfSignedConfig) (certPath, keyPath string, err error) {
	if cfg.Organization == "" {
		cfg.Organization = defaultOrganization
	}
	if cfg.BaseName == "" {
		cfg.BaseName = "tls"
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return "", "", err
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   host,
			Organization: []string{cfg.Organization},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{host, "localhost", "unix", "unixpacket", "bufconn"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
	}

	for _, h := range cfg.Hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return "", "", fmt.Errorf("create cert: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	certPath = filepath.Join(outDir, cfg.BaseName+".cert")
	keyPath = filepath.Join(outDir, cfg.BaseName+".key")

	if err := writePEM(certPath, "CERTIFICATE", certDER, 0o644); err != nil {
		return "", "", err
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("marshal key: %w", err)
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", keyDER, 0o600); err != nil {
		return "", "", err
	}

	return certPath, keyPath, nil
}

// LoadCert loads the first certificate from a PEM file.
func LoadCert(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cert: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("decode cert pem: no block found")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse cert: %w", err)
	}

	return cert, nil
}

func randomSerial() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}

func writePEM(path, blockType string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: data})
}
