package doctor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math"
	"net"
	"net/url"
	"time"
)

// Certificate states.
const (
	CertValid       = "valid"
	CertExpiring    = "expiring"
	CertExpired     = "expired"
	CertUnreachable = "unreachable"
)

// ExpiringDays is the window in which a certificate counts as expiring.
const ExpiringDays = 30

const dialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate of an HTTPS endpoint.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"`
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"`
	DaysLeft int    `json:"days_left"`
}

// CheckCert dials endpoint and inspects its leaf certificate. It returns nil
// for endpoints that are not https. insecure skips chain verification so
// self-signed certificates can still be dated.
func CheckCert(ctx context.Context, endpoint string, insecure bool) *CertStatus {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}
	cs := &CertStatus{Endpoint: redact(u), Status: CertUnreachable}

	leaf, err := leafCert(ctx, u, insecure)
	if err != nil {
		return cs
	}
	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Status, cs.DaysLeft = classify(leaf.NotAfter, time.Now())
	return cs
}

// classify buckets an expiry date relative to now.
func classify(notAfter, now time.Time) (status string, daysLeft int) {
	days := notAfter.Sub(now).Hours() / 24
	daysLeft = int(math.Floor(days))
	switch {
	case days <= 0:
		return CertExpired, daysLeft
	case days <= ExpiringDays:
		return CertExpiring, daysLeft
	}
	return CertValid, daysLeft
}

func leafCert(ctx context.Context, u *url.URL, insecure bool) (*x509.Certificate, error) {
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "443")
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	d := &tls.Dialer{Config: &tls.Config{
		ServerName:         u.Hostname(),
		InsecureSkipVerify: insecure, //nolint:gosec
	}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return nil, errors.New("no peer certificate")
	}
	return peers[0], nil
}

// redact drops the path and query: webhook URLs carry their secret there.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
