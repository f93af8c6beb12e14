package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
}

// Detector flags probing requests and resolves the client address behind
// trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	trustedProxies []*net.IPNet
	onSuspicious   func(r *http.Request, reason string)
}

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	suspiciousAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	unusualMethods   = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const maxURLLength = 2048

// NewDetector creates a detector that trusts loopback and private
// networks as proxies.
func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
			parseCIDR("::1/128"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// OnSuspicious sets the callback invoked for every flagged request.
func (d *Detector) OnSuspicious(fn func(r *http.Request, reason string)) {
	d.onSuspicious = fn
}

// Inspect returns why r looks like a probe, or "" when it does not.
func (d *Detector) Inspect(r *http.Request) string {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) {
			return "path pattern " + pattern
		}
		if strings.Contains(query, pattern) {
			return "query pattern " + pattern
		}
	}

	userAgent := strings.ToLower(r.UserAgent())
	for _, agent := range suspiciousAgents {
		if strings.Contains(userAgent, agent) {
			return "user agent " + agent
		}
	}

	for _, method := range unusualMethods {
		if r.Method == method {
			return "method " + method
		}
	}

	if len(r.URL.String()) > maxURLLength {
		return "url too long"
	}

	// More than 5 proxy hops suggests a forged chain.
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "forwarded chain too long"
	}
	return ""
}

// Middleware counts and reports suspicious requests. Requests are never
// blocked here; the rate limiter handles abuse.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			d.suspicious.Add(1)
			if d.onSuspicious != nil {
				d.onSuspicious(r, reason)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the client address, honouring X-Forwarded-For
// and X-Real-IP only when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !d.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
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
	return DetectionMetrics{SuspiciousRequests: d.suspicious.Load()}
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
