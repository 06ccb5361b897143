package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Default certificate file names, one per listener binding.
const (
	ClientCertFile = "ipcontroller-client.pem"
	EngineCertFile = "ipcontroller-engine.pem"
)

const certValidity = 10 * 365 * 24 * time.Hour

// EnsureCertificate returns a TLS certificate for one binding. Under the
// reuse policy an existing file is loaded; otherwise a fresh self-signed
// certificate is generated covering the given hosts and written as a
// combined key+cert PEM with 0600.
func (p *Provisioner) EnsureCertificate(filename string, hosts []string) (tls.Certificate, error) {
	path := filepath.Join(p.Dir, filename)

	if p.Reuse {
		cert, err := tls.LoadX509KeyPair(path, path)
		if err == nil {
			if p.Logger != nil {
				p.Logger.Debug("reusing certificate", logpkg.Str("path", path))
			}
			return cert, nil
		}
		if !os.IsNotExist(err) {
			return tls.Certificate{}, fmt.Errorf("load certificate %s: %w", path, err)
		}
	}

	pemBytes, err := selfSignedPEM(hosts)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate certificate: %w", err)
	}
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return tls.Certificate{}, fmt.Errorf("write certificate: %w", err)
	}
	if p.Logger != nil {
		p.Logger.Info("wrote certificate", logpkg.Str("path", path))
	}
	return tls.X509KeyPair(pemBytes, pemBytes)
}

func selfSignedPEM(hosts []string) ([]byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "ipcontroller"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else if h != "" {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	if len(tmpl.IPAddresses) == 0 && len(tmpl.DNSNames) == 0 {
		tmpl.DNSNames = []string{"localhost"}
		tmpl.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1)}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}

	var out []byte
	out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})...)
	out = append(out, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})...)
	return out, nil
}
