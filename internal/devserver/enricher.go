package devserver

import (
	"net"
	"time"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"
)

// Enricher stamps inbound records with parsed user-agent facts and,
// when a GeoIP database is configured, a coarse location.
type Enricher struct {
	geoIP *geoip2.Reader
}

func NewEnricher(geoIPPath string) *Enricher {
	var geoIP *geoip2.Reader
	if geoIPPath != "" {
		geoIP, _ = geoip2.Open(geoIPPath)
	}
	return &Enricher{geoIP: geoIP}
}

// Enrich returns record with server-side fields merged in. The record
// itself is mutated and returned for convenience.
func (e *Enricher) Enrich(record map[string]any, userAgentString, clientIP string) map[string]any {
	record["serverTimestamp"] = time.Now().UnixMilli()

	if userAgentString != "" {
		ua := useragent.New(userAgentString)
		browser, version := ua.Browser()
		record["browser"] = browser
		record["browserVersion"] = version
		record["os"] = ua.OS()
		record["osVersion"] = ua.OSInfo().Version
		record["deviceType"] = deviceType(ua)
	}

	if e.geoIP != nil && clientIP != "" {
		if ip := net.ParseIP(clientIP); ip != nil {
			if city, err := e.geoIP.City(ip); err == nil {
				record["country"] = city.Country.IsoCode
				if name, ok := city.City.Names["en"]; ok {
					record["city"] = name
				}
			}
		}
	}
	return record
}

func deviceType(ua *useragent.UserAgent) string {
	if ua.Mobile() {
		return "mobile"
	}
	if ua.Bot() {
		return "bot"
	}
	return "desktop"
}

func (e *Enricher) Close() {
	if e.geoIP != nil {
		e.geoIP.Close()
	}
}
