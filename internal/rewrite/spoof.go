package rewrite

import (
	"fmt"
	"regexp"

	"origin-proxy-go/internal/proxyurl"
)

var headClose = regexp.MustCompile(`(?i)</head\s*>`)

// spoofTemplate is the client-side environment spoof, parameterized by
// target host (with port), hostname, origin, and protocol. It makes page
// script perceive the target origin instead of the proxy's, and re-encodes
// URLs handed to the navigation APIs at runtime, which covers the dynamic
// cases the static inline patcher cannot see.
const spoofTemplate = `<script data-origin-proxy="spoof">(function() {
	"use strict";
	var targetHost = %s;
	var targetHostname = %s;
	var targetOrigin = %s;
	var targetProtocol = %s;

	function reencode(url) {
		if (typeof url !== "string") { return url; }
		try {
			var abs = new URL(url, targetOrigin + "/");
			if (abs.protocol === "http:" || abs.protocol === "https:") {
				return "/proxy/" + encodeURIComponent(abs.href);
			}
		} catch (e) {}
		return url;
	}

	function defineGetter(obj, prop, getter) {
		try {
			Object.defineProperty(obj, prop, { get: getter, configurable: true });
		} catch (e) {}
	}

	defineGetter(window.location, "hostname", function() { return targetHostname; });
	defineGetter(window.location, "host", function() { return targetHost; });
	defineGetter(window.location, "origin", function() { return targetOrigin; });
	defineGetter(window.location, "protocol", function() { return targetProtocol; });

	try {
		Object.defineProperty(document, "domain", {
			get: function() { return targetHostname; },
			set: function() {},
			configurable: true
		});
	} catch (e) {}

	// Cookies are already host-scoped by the response header rewrite, so
	// reads and writes delegate to the original accessor untouched.
	try {
		var cookieDesc = Object.getOwnPropertyDescriptor(Document.prototype, "cookie");
		if (cookieDesc) {
			Object.defineProperty(document, "cookie", {
				get: function() { return cookieDesc.get.call(document); },
				set: function(v) { cookieDesc.set.call(document, v); },
				configurable: true
			});
		}
	} catch (e) {}

	function wrapNav(obj, name, urlIndex) {
		var original = obj[name];
		if (typeof original !== "function") { return; }
		obj[name] = function() {
			var args = Array.prototype.slice.call(arguments);
			if (args.length > urlIndex) {
				args[urlIndex] = reencode(args[urlIndex]);
			}
			return original.apply(obj, args);
		};
	}

	wrapNav(window.location, "assign", 0);
	wrapNav(window.location, "replace", 0);
	wrapNav(window.history, "pushState", 2);
	wrapNav(window.history, "replaceState", 2);
})();</script>`

// SpoofScript renders the environment-spoofing script for target.
func SpoofScript(target proxyurl.Target) string {
	return fmt.Sprintf(spoofTemplate,
		jsString(target.Host()),
		jsString(target.Hostname()),
		jsString(target.Origin()),
		jsString(target.Scheme()+":"),
	)
}

// InjectSpoof places the spoof script immediately before the closing head
// tag, or prepends it to the whole document when no head-closing tag exists.
func InjectSpoof(doc string, target proxyurl.Target) string {
	script := SpoofScript(target)
	if m := headClose.FindStringIndex(doc); m != nil {
		return doc[:m[0]] + script + doc[m[0]:]
	}
	return script + doc
}

// jsString quotes s as a JavaScript string literal. Go's quoting rules are a
// valid JS subset for the host/origin values embedded here.
func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}
