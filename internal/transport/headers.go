package transport

import "net/http"

// Hop-by-hop headers that must not be sent upstream.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func stripHopByHop(h http.Header) {
	for _, key := range hopByHopHeaders {
		h.Del(key)
	}
}

func prepareStreamHeaders(extra http.Header, apiKey string) http.Header {
	h := prepareHeaders(extra, apiKey)
	h.Set("Accept", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	return h
}

func prepareHeaders(extra http.Header, apiKey string) http.Header {
	h := make(http.Header)
	copyHeaders(h, extra)
	stripHopByHop(h)

	h.Del("Host")

	if apiKey != "" && h.Get("Authorization") == "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}

	// Compressed bodies would defeat incremental line splitting.
	h.Del("Accept-Encoding")

	return h
}
