package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N resolves the language the story should be written in. Explicit
// headers win; the request's country is a last resort for clients that send
// no language information at all.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	if v := normalizeLocale(r.Header.Get("X-Locale")); v != "" {
		return v
	}
	if v := parseAcceptLanguage(r.Header.Get("Accept-Language")); v != "" {
		return v
	}
	if v := languageForCountry(country); v != "" {
		return v
	}
	if v := normalizeLocale(fallback); v != "" {
		return v
	}
	return "en"
}

func parseAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" || token == "*" {
			continue
		}
		if v := normalizeLocale(token); v != "" {
			return v
		}
	}
	return ""
}

// normalizeLocale reduces a locale tag to its primary language subtag
// ("pt-BR" -> "pt"). Any language code is valid; stories are generated in
// whatever language the client asks for.
func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(locale, "-_"); idx >= 0 {
		locale = locale[:idx]
	}
	if len(locale) < 2 || len(locale) > 3 {
		return ""
	}
	for _, c := range locale {
		if c < 'a' || c > 'z' {
			return ""
		}
	}
	return locale
}

// countryLanguages maps countries to the language a reader there most likely
// wants when the request carries no language headers.
var countryLanguages = map[string]string{
	"AE": "ar", "AR": "es", "AT": "de", "BR": "pt", "CL": "es",
	"CN": "zh", "CO": "es", "CZ": "cs", "DE": "de", "DK": "da",
	"EG": "ar", "ES": "es", "FI": "fi", "FR": "fr", "GR": "el",
	"HU": "hu", "ID": "id", "IL": "he", "IT": "it", "JP": "ja",
	"KR": "ko", "MX": "es", "NL": "nl", "NO": "no", "PL": "pl",
	"PT": "pt", "RO": "ro", "RU": "ru", "SA": "ar", "SE": "sv",
	"TH": "th", "TR": "tr", "TW": "zh", "UA": "uk", "VN": "vi",
}

func languageForCountry(country string) string {
	return countryLanguages[strings.ToUpper(strings.TrimSpace(country))]
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
// Proxy headers are cheapest, then the region subtag of any locale header,
// then the GeoIP database.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}
