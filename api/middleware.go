package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"warden/core"
	"warden/metrics"
	"warden/storage"
	"warden/util"

	"golang.org/x/time/rate"
)

// violationWindow is the span over which rate limit violations count towards blacklisting
const violationWindow = time.Minute

// statusRecorder captures the response status for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestInfoMiddleware attaches the caller's address and request line to the context
func (a *API) requestInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := core.RequestInfo{
			IP:        getRealIP(r, a.opts.TrustProxy, a.opts.TrustedProxyNetworks),
			UserAgent: r.UserAgent(),
			Method:    r.Method,
			URL:       util.RedactSecrets(r.URL.RequestURI()),
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithRequestInfo(r.Context(), info)))
	})
}

// accessLogMiddleware records one access event per request, including rejected ones
func (a *API) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.emit(r.Context(), core.CategoryAccess, core.EventTypeHTTPRequest, rec.status)
	})
}

// blacklistMiddleware answers blacklisted IPs with 403. Store errors fail open.
func (a *API) blacklistMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ := core.RequestInfoFromContext(r.Context())

		blocked, err := a.counters.IsBlacklisted(r.Context(), info.IP)
		if err != nil {
			a.logger.Warnw("Blacklist lookup failed, allowing request",
				"ip", info.IP,
				"error", err)
		}
		if blocked {
			metrics.HTTPRequestsRejected.WithLabelValues("blacklisted").Inc()
			a.logger.Warnw("Rejected request from blacklisted IP",
				"ip", info.IP,
				"method", info.Method,
				"url", info.URL)
			a.emit(r.Context(), core.CategorySecurity, core.EventTypeBlacklistedRequest, http.StatusForbidden)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware provides rate limiting per IP
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ := core.RequestInfoFromContext(r.Context())

		a.rateLimitersMu.Lock()
		entry, exists := a.rateLimiters[info.IP]
		if !exists {
			entry = &rateLimiterEntry{
				limiter: rate.NewLimiter(rate.Limit(a.opts.RequestsPerSecond), a.opts.Burst),
			}
			a.rateLimiters[info.IP] = entry
		}
		entry.lastSeen = time.Now()
		// Capture limiter reference while holding lock to prevent race with cleanup
		limiter := entry.limiter
		a.rateLimitersMu.Unlock()

		if !limiter.Allow() {
			metrics.HTTPRequestsRejected.WithLabelValues("rate_limited").Inc()
			a.emit(r.Context(), core.CategorySecurity, core.EventTypeRateLimitViolation, http.StatusTooManyRequests)
			a.recordViolation(r.Context(), info.IP)
			w.Header().Set("Retry-After", strconv.Itoa(1))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recordViolation counts violations per IP and blacklists repeat offenders
func (a *API) recordViolation(ctx context.Context, ip string) {
	if a.opts.BlacklistAfter <= 0 || ip == "" {
		return
	}

	key := storage.RateLimitKey("violations:" + ip)
	n, err := a.counters.Incr(ctx, key)
	if err != nil {
		a.logger.Warnw("Failed to count rate limit violation", "ip", ip, "error", err)
		return
	}
	if n == 1 {
		if err := a.counters.Expire(ctx, key, violationWindow); err != nil {
			a.logger.Warnw("Failed to set violation window", "ip", ip, "error", err)
		}
	}
	if n != int64(a.opts.BlacklistAfter) {
		return
	}

	if err := a.counters.Blacklist(ctx, ip, a.opts.BlacklistTTL); err != nil {
		a.logger.Errorw("Failed to blacklist IP", "ip", ip, "error", err)
		return
	}
	a.logger.Warnw("Blacklisted IP after repeated rate limit violations",
		"ip", ip,
		"violations", n,
		"ttl", a.opts.BlacklistTTL)
}

// cleanupRateLimiters periodically removes inactive rate limiters to prevent memory leaks
func (a *API) cleanupRateLimiters() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.rateLimitersMu.Lock()
			for ip, entry := range a.rateLimiters {
				if time.Since(entry.lastSeen) > 1*time.Hour {
					delete(a.rateLimiters, ip)
				}
			}
			a.rateLimitersMu.Unlock()
		case <-a.stopCh:
			return
		}
	}
}

func (a *API) emit(ctx context.Context, category core.EventCategory, eventType string, status int) {
	if a.events == nil {
		return
	}
	info, _ := core.RequestInfoFromContext(ctx)
	a.events.Emit(core.NewSecurityEvent(a.clock.Now(), category, eventType, core.EventDetails{
		IP:         info.IP,
		UserAgent:  info.UserAgent,
		Method:     info.Method,
		URL:        info.URL,
		StatusCode: status,
	}))
}
