package middleware

import "net/http"

// Stack composes middleware so the first one listed runs outermost.
//
//	solve := middleware.Stack(identityMw.Handler, limiter.Handler)
//	mux.Handle("POST /api/solve/photo", solve(photoHandler))
//
// This is equivalent to:
//
//	identityMw.Handler(limiter.Handler(photoHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
