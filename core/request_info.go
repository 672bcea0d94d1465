package core

import "context"

// RequestInfo describes the inbound request on whose behalf a statement runs
type RequestInfo struct {
	IP        string
	UserAgent string
	Method    string
	URL       string
}

type requestInfoKey struct{}

// ContextWithRequestInfo attaches request metadata used when recording security events
func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the request metadata, if any
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
