// Package security holds the HTTP hardening middleware: response headers,
// client IP resolution behind proxies and probe detection.
package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "fintrack/internal/log"
)

var (
	probePatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"<script", "union select", "etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	unusualVerbs  = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

const maxURLLength = 2048

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector resolves client IPs and flags requests that look like probes.
type Detector struct {
	metrics        *DetectionMetrics
	trustedProxies []*net.IPNet
}

// NewDetector trusts loopback and the private ranges as proxies.
func NewDetector() *Detector {
	return &Detector{
		metrics: &DetectionMetrics{},
		trustedProxies: []*net.IPNet{
			mustParseCIDR("127.0.0.0/8"),
			mustParseCIDR("10.0.0.0/8"),
			mustParseCIDR("172.16.0.0/12"),
			mustParseCIDR("192.168.0.0/16"),
		},
	}
}

func mustParseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest reports whether r looks like a scanner or an
// injection attempt. Normal API clients such as curl are not flagged.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	suspicious := unusualVerbs[r.Method] || len(r.URL.String()) > maxURLLength

	if !suspicious {
		path := strings.ToLower(r.URL.Path)
		query := strings.ToLower(r.URL.RawQuery)
		for _, p := range probePatterns {
			if strings.Contains(path, p) || strings.Contains(query, p) {
				suspicious = true
				break
			}
		}
	}

	if !suspicious {
		agent := strings.ToLower(r.Header.Get("User-Agent"))
		for _, a := range scannerAgents {
			if strings.Contains(agent, a) {
				suspicious = true
				break
			}
		}
	}

	if suspicious {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return suspicious
}

// ExtractClientIP returns the caller's address. Forwarded headers are only
// honoured when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
		atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
		atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		InvalidIPAttempts:  atomic.LoadInt64(&d.metrics.InvalidIPAttempts),
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// Middleware logs suspicious requests and lets them through; routing and
// auth decide their fate.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, d.ExtractClientIP(r),
				applog.FieldUserAgent, r.Header.Get("User-Agent"),
			)
		}
		next.ServeHTTP(w, r)
	})
}
