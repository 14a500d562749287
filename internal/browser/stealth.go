package browser

import (
	_ "embed"
)

//go:embed stealth.js
var stealthScript string

//go:embed text.js
var textScript string

//go:embed links.js
var linksScript string

// Stealth is the anti-fingerprinting configuration applied to every session
// at creation time. Bump Version whenever Script or Flags change so cached
// pages can be traced back to the payload that produced them.
type Stealth struct {
	Version string
	// Script is registered to run before any page script on each new document.
	Script string
	// Flags are Chrome command-line switches; a false value disables a switch
	// that is on by default.
	Flags map[string]any
}

// DefaultStealth is the payload used unless a caller supplies its own.
var DefaultStealth = Stealth{
	Version: "2024.2",
	Script:  stealthScript,
	Flags: map[string]any{
		"disable-blink-features":         "AutomationControlled",
		"enable-automation":              false,
		"disable-infobars":               true,
		"disable-extensions":             true,
		"disable-popup-blocking":         true,
		"disable-dev-shm-usage":          true,
		"disable-web-security":           true,
		"allow-running-insecure-content": true,
		"disk-cache-size":                "0",
		"blink-settings":                 "imagesEnabled=false",
		"disable-notifications":          true,
		"no-first-run":                   true,
		"no-default-browser-check":       true,
	},
}
