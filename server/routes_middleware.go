// routes_middleware.go - Middleware fuer den Export-Dienst
// Enthaelt: hostPolicy (DNS-Rebinding-Schutz), limitBody (Groessenlimit fuer Uploads)

package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// localDomains sind Domains, die immer als lokal gelten
var localDomains = []string{"localhost", "local", "internal"}

// hostPolicy entscheidet, welche Host-Header der Dienst annimmt, solange er
// nur auf Loopback lauscht
type hostPolicy struct {
	hostname string
	extra    []string
	localIP  func(netip.Addr) bool
}

func newHostPolicy(extra []string) *hostPolicy {
	hostname, _ := os.Hostname()
	return &hostPolicy{
		hostname: strings.ToLower(hostname),
		extra:    extra,
		localIP:  isLocalIP,
	}
}

// isLocalIP prueft ob die IP-Adresse zu einem lokalen Interface gehoert
func isLocalIP(ip netip.Addr) bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			if prefix, err := netip.ParsePrefix(a.String()); err == nil && prefix.Addr().Unmap() == ip.Unmap() {
				return true
			}
		}
	}

	return false
}

// allowName prueft Host-Namen gegen lokale Domains und EXECUTORCH_ALLOWED_HOSTS
func (p *hostPolicy) allowName(host string) bool {
	host = strings.ToLower(host)
	if host == "" || host == "localhost" || (p.hostname != "" && host == p.hostname) {
		return true
	}

	if slices.Contains(p.extra, host) {
		return true
	}

	for _, domain := range append(slices.Clone(localDomains), p.extra...) {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}

// allowAddr akzeptiert Loopback, private und eigene Interface-Adressen
func (p *hostPolicy) allowAddr(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || p.localIP(addr)
}

// middleware blockiert fremde Host-Header, wenn addr eine Loopback-Adresse ist
func (p *hostPolicy) middleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if ap, err := netip.ParseAddrPort(addr.String()); err == nil && !ap.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if ip, err := netip.ParseAddr(host); err == nil {
			if p.allowAddr(ip) {
				c.Next()
				return
			}
		} else if p.allowName(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		slog.Warn("rejected request host", "host", c.Request.Host, "path", c.Request.URL.Path)
		c.AbortWithStatus(http.StatusForbidden)
	}
}

// limitBody begrenzt Request-Bodys auf maxBytes; 0 = unbegrenzt
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			if c.Request.ContentLength > maxBytes {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
