package proxy

import "regexp"

// cookieAttrRe finds a ";<space>*<property>=<value>" clause in a Set-Cookie
// header value, case-insensitively, capturing the value so it can be
// substituted or the whole clause removed. §4.8.
func cookieAttrRe(property string) *regexp.Regexp {
	return regexp.MustCompile(`(?i);(\s*` + property + `=)([^;]*)`)
}

// rewriteCookieProperty rewrites a single Set-Cookie attribute ("domain" or
// "path") according to config: an exact match on the current value wins,
// falling back to the "*" wildcard rule; no match leaves the header
// unchanged. A rule mapping to "" removes the whole ";property=value" clause.
func rewriteCookieProperty(headerValue string, config CookieRewrite, property string) string {
	if !config.enabled() {
		return headerValue
	}

	re := cookieAttrRe(property)
	loc := re.FindStringSubmatchIndex(headerValue)
	if loc == nil {
		return headerValue
	}

	clauseStart, clauseEnd := loc[0], loc[1]
	valueStart, valueEnd := loc[4], loc[5]
	current := headerValue[valueStart:valueEnd]

	newValue, ok := config.Rules[current]
	if !ok {
		newValue, ok = config.Rules["*"]
	}
	if !ok {
		return headerValue
	}

	if newValue == "" {
		return headerValue[:clauseStart] + headerValue[clauseEnd:]
	}
	return headerValue[:valueStart] + newValue + headerValue[valueEnd:]
}

// rewriteCookieProperties applies rewriteCookieProperty across every
// Set-Cookie value in the slice, per §4.8 "if headerValue is a list, map
// elementwise".
func rewriteCookieProperties(values []string, domainCfg, pathCfg CookieRewrite) []string {
	if !domainCfg.enabled() && !pathCfg.enabled() {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		v = rewriteCookieProperty(v, domainCfg, "domain")
		v = rewriteCookieProperty(v, pathCfg, "path")
		out[i] = v
	}
	return out
}
