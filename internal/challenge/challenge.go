// Package challenge recognises bot-protection interstitials so they are not
// mistaken for page content.
package challenge

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP response the detectors inspect.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Detector reports whether r is a challenge or block page and, if so, the vendor.
type Detector func(r Response) (vendor string, ok bool)

// Defaults returns the built-in detectors in evaluation order.
func Defaults() []Detector {
	return []Detector{
		cloudflare,
		akamai,
		dataDome,
		perimeterX,
	}
}

// Detect runs r through detectors and returns the first vendor that matches.
func Detect(r Response, detectors []Detector) (string, bool) {
	for _, d := range detectors {
		if vendor, ok := d(r); ok {
			return vendor, true
		}
	}
	return "", false
}

func serverContains(h http.Header, s string) bool {
	return strings.Contains(strings.ToLower(h.Get("Server")), s)
}

func bodyContainsAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// 403 and 503 are both used for Cloudflare challenges.
func cloudflare(r Response) (string, bool) {
	if r.Status != http.StatusForbidden && r.Status != http.StatusServiceUnavailable {
		return "", false
	}
	if serverContains(r.Header, "cloudflare") ||
		bodyContainsAny(r.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return "Cloudflare", true
	}
	return "", false
}

func akamai(r Response) (string, bool) {
	if r.Status != http.StatusForbidden {
		return "", false
	}
	if serverContains(r.Header, "akamai") {
		return "Akamai", true
	}
	// generic "Reference #" block page
	if bodyContainsAny(r.Body, "Reference #") && bodyContainsAny(r.Body, "Access Denied") {
		return "Akamai", true
	}
	return "", false
}

func dataDome(r Response) (string, bool) {
	if r.Status != http.StatusForbidden {
		return "", false
	}
	if serverContains(r.Header, "datadome") ||
		r.Header.Get("X-DataDome") != "" || r.Header.Get("X-DataDome-Response") != "" ||
		bodyContainsAny(r.Body, "geo.captcha-delivery.com", "datadome") {
		return "DataDome", true
	}
	return "", false
}

func perimeterX(r Response) (string, bool) {
	if r.Status != http.StatusForbidden {
		return "", false
	}
	if r.Header.Get("X-Px-Captcha") != "" ||
		bodyContainsAny(r.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return "PerimeterX", true
	}
	return "", false
}
