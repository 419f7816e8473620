package analytics

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts client IP address from request
func GetClientIP(r *http.Request) string {
	// Try X-Forwarded-For header first (proxy/load balancer)
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take the first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	// Try X-Real-IP header
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return strings.TrimSpace(realIP)
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// GetUserAgent extracts user agent from request
func GetUserAgent(r *http.Request) string {
	return r.UserAgent()
}

// GetReferrer extracts referrer from request
func GetReferrer(r *http.Request) string {
	return r.Header.Get("Referer")
}

// GetCountry reads the visitor country set by the edge (Cloudflare or a generic proxy header)
func GetCountry(r *http.Request) string {
	country := r.Header.Get("CF-IPCountry")
	if country == "" {
		country = r.Header.Get("X-Country-Code")
	}
	// XX and T1 are Cloudflare's unknown and Tor markers
	switch strings.ToUpper(country) {
	case "", "XX", "T1":
		return ""
	}
	return strings.ToUpper(country)
}

// GetCity reads the visitor city set by the edge
func GetCity(r *http.Request) string {
	if city := r.Header.Get("CF-IPCity"); city != "" {
		return city
	}
	return r.Header.Get("X-City")
}

// RequestContext fills the request-derived fields of event that the caller left empty
func RequestContext(r *http.Request, event Event) Event {
	if event.IPAddress == "" {
		event.IPAddress = GetClientIP(r)
	}
	if event.UserAgent == "" {
		event.UserAgent = GetUserAgent(r)
	}
	if event.Referrer == "" {
		event.Referrer = GetReferrer(r)
	}
	if event.Country == "" {
		event.Country = GetCountry(r)
	}
	if event.City == "" {
		event.City = GetCity(r)
	}
	return event
}
