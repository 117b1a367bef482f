// Package leecarter fits the Lee-Carter mortality model.
//
// The model decomposes the log-rate matrix ln m(x,t) into an age effect ax,
// an age-specific sensitivity bx, and a time index kt:
//
//	ln m(x,t) = ax + bx*kt
//
// The decomposition is a rank-1 truncated singular value decomposition of
// the centered log-rate matrix, so the reconstruction is the least-squares
// optimal rank-1 approximation by construction, not an iterative fit. Two
// identifiability constraints are applied: sum(bx) = 1 and sum(kt) = 0.
// Rescaling bx forces a compensating rescale of kt and a compensating shift
// of ax, so the reconstructed surface is preserved exactly.
//
// The time index can be extrapolated with ForecastKt, which models kt as a
// random walk with drift (the conventional choice in the demographic
// literature) and falls back to a fitted linear trend when the drift fit is
// degenerate.
package leecarter
