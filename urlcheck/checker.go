package urlcheck

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/inkhaven-social/warden/cachestore"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/keyword"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/setstore"
	"github.com/inkhaven-social/warden/util/ssrf"
)

// Threat type strings attached to unsafe verdicts.
const (
	ThreatBlacklist      = "domain-blacklist"
	ThreatIPLiteral      = "ip-literal"
	ThreatReservedIP     = "reserved-ip"
	ThreatShortener      = "url-shortener"
	ThreatSuspiciousTLD  = "suspicious-tld"
	ThreatDigitRun       = "digit-run"
	ThreatSuspiciousHost = "suspicious-host"
)

// Set names consulted by the heuristic fallback.
const (
	ShortenerSetName      = "url-shorteners"
	SuspiciousTLDSetName  = "suspicious-tlds"
	SuspiciousWordSetName = "suspicious-host-words"
)

const cacheName = "url-verdict"

// Verdict is the cached outcome of checking one URL.
type Verdict struct {
	URL       string    `json:"url"`
	Safe      bool      `json:"safe"`
	Threats   []string  `json:"threats,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
	// Source records which path produced the verdict: whitelist, blacklist,
	// cache, reputation, or heuristic.
	Source string `json:"source"`
}

// Result aggregates verdicts for all URLs found in one text.
type Result struct {
	Safe    bool
	Threats []Verdict
}

// Checker validates URLs against an external reputation service with a
// bounded timeout, a TTL cache in front, and heuristic fallbacks when the
// service is unavailable. Undeterminable URLs are treated as safe (fail
// open): an outage must not block legitimate submissions.
type Checker struct {
	Client  ReputationClient
	Cache   cachestore.CacheStore
	Sets    setstore.SetStore
	Limiter *rate.Limiter
	Timeout time.Duration

	sf singleflight.Group
}

func NewChecker(client ReputationClient, cache cachestore.CacheStore, sets setstore.SetStore) *Checker {
	return &Checker{
		Client:  client,
		Cache:   cache,
		Sets:    sets,
		Limiter: rate.NewLimiter(rate.Limit(20), 40),
		Timeout: 5 * time.Second,
	}
}

// CheckText extracts and validates every URL in the text. The result is
// always usable; infrastructure failures degrade to heuristics and are
// logged, never surfaced.
func (c *Checker) CheckText(ctx context.Context, text string, snap *policy.Snapshot) *Result {
	res := &Result{Safe: true}
	if !snap.Enabled(flagstore.FlagMaliciousURL) {
		return res
	}
	for _, u := range ExtractTextURLs(text) {
		v := c.CheckURL(ctx, u, snap)
		if !v.Safe {
			res.Safe = false
			res.Threats = append(res.Threats, v)
		}
	}
	return res
}

// CheckURL resolves a verdict for one URL: whitelist, then cache, then the
// reputation service, then heuristics. The URL is normalized first, so
// variants that differ only in tracking params or fragments share one
// verdict. Outcomes from the service and the heuristics are cached with the
// store's TTL regardless of which produced them, so repeated checks within
// the TTL never repeat the external call.
func (c *Checker) CheckURL(ctx context.Context, raw string, snap *policy.Snapshot) Verdict {
	raw = NormalizeURL(strings.ToLower(raw))
	f := snap.For(flagstore.FlagMaliciousURL)

	host := HostOf(raw)
	if host == "" {
		// nothing to look up; fail open
		slog.Warn("url with no parseable host", "url", raw)
		return Verdict{URL: raw, Safe: true, CheckedAt: time.Now().UTC(), Source: "unparsed"}
	}

	if domainMatches(host, f.InWhitelist) {
		return Verdict{URL: raw, Safe: true, CheckedAt: time.Now().UTC(), Source: "whitelist"}
	}
	if domainMatches(host, f.InBlacklist) {
		return Verdict{URL: raw, Safe: false, Threats: []string{ThreatBlacklist}, CheckedAt: time.Now().UTC(), Source: "blacklist"}
	}

	if v, ok := c.cachedVerdict(ctx, raw); ok {
		urlCacheHits.Inc()
		return v
	}
	urlCacheMisses.Inc()

	// collapse concurrent lookups of the same URL
	out, _, _ := c.sf.Do(raw, func() (interface{}, error) {
		if v, ok := c.cachedVerdict(ctx, raw); ok {
			return v, nil
		}
		v := c.resolve(ctx, raw, host)
		c.storeVerdict(ctx, raw, v)
		return v, nil
	})
	return out.(Verdict)
}

func (c *Checker) resolve(ctx context.Context, raw, host string) Verdict {
	if c.Client != nil && c.Limiter.Allow() {
		lookupCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()
		safe, threats, err := c.Client.Lookup(lookupCtx, raw)
		if err == nil {
			return Verdict{URL: raw, Safe: safe, Threats: threats, CheckedAt: time.Now().UTC(), Source: "reputation"}
		}
		urlLookupFallbacks.Inc()
		slog.Warn("url reputation lookup failed, falling back to heuristics", "url", raw, "err", err)
	}
	return c.heuristicVerdict(ctx, raw, host)
}

// heuristicVerdict applies local-only checks: IP-literal hosts, known URL
// shorteners, suspicious TLDs, long digit runs, and suspicious host words.
// No match means safe.
func (c *Checker) heuristicVerdict(ctx context.Context, raw, host string) Verdict {
	var threats []string

	if ip := net.ParseIP(host); ip != nil {
		threats = append(threats, ThreatIPLiteral)
		if !ssrf.IsPublicIPAddress(ip) {
			threats = append(threats, ThreatReservedIP)
		}
	}
	if c.inSet(ctx, ShortenerSetName, host) {
		threats = append(threats, ThreatShortener)
	}
	if tld := lastLabel(host); tld != "" && c.inSet(ctx, SuspiciousTLDSetName, tld) {
		threats = append(threats, ThreatSuspiciousTLD)
	}
	if longestDigitRun(host) >= 5 {
		threats = append(threats, ThreatDigitRun)
	}
	for _, tok := range keyword.TokenizeIdentifier(host) {
		if c.inSet(ctx, SuspiciousWordSetName, tok) {
			threats = append(threats, ThreatSuspiciousHost)
			break
		}
	}

	return Verdict{
		URL:       raw,
		Safe:      len(threats) == 0,
		Threats:   threats,
		CheckedAt: time.Now().UTC(),
		Source:    "heuristic",
	}
}

func (c *Checker) inSet(ctx context.Context, name, val string) bool {
	ok, err := c.Sets.InSet(ctx, name, val)
	if err != nil {
		slog.Warn("set lookup failed", "set", name, "err", err)
		return false
	}
	return ok
}

func (c *Checker) cachedVerdict(ctx context.Context, raw string) (Verdict, bool) {
	cached, err := c.Cache.Get(ctx, cacheName, raw)
	if err != nil {
		slog.Warn("url verdict cache read failed", "url", raw, "err", err)
		return Verdict{}, false
	}
	if cached == "" {
		return Verdict{}, false
	}
	var v Verdict
	if err := json.Unmarshal([]byte(cached), &v); err != nil {
		slog.Warn("corrupt url verdict cache entry", "url", raw, "err", err)
		return Verdict{}, false
	}
	v.Source = "cache"
	return v, true
}

func (c *Checker) storeVerdict(ctx context.Context, raw string, v Verdict) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.Cache.Set(ctx, cacheName, raw, string(b)); err != nil {
		slog.Warn("url verdict cache write failed", "url", raw, "err", err)
	}
}

// domainMatches checks the host and every parent domain against a term set,
// so a whitelisted example.com also covers cdn.example.com.
func domainMatches(host string, in func(string) bool) bool {
	if in(host) {
		return true
	}
	for {
		idx := strings.Index(host, ".")
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if host == "" {
			return false
		}
		if in(host) {
			return true
		}
	}
}
