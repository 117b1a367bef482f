// Package apc fits a Bayesian age-period-cohort mortality model.
//
// The generative specification is a Poisson regression with log link and
// exposure offset:
//
//	D_i ~ Poisson(E_i * exp(mu + alpha[a_i] + beta[t_i] + gamma[c_i]))
//
// where a, t and c index age group, period and birth cohort, and the cohort
// index is the deterministic c = t - a + (A-1). Because age, period and
// cohort are linearly dependent, each effect vector is built from a
// first-order random walk (independent standard-normal increments,
// cumulative-summed behind a leading zero, scaled by a HalfNormal(1)
// smoothness scale) and then mean-centered. The walk encodes local
// smoothness; the centering removes the constant mode that would otherwise
// be unidentifiable against the grand mean mu ~ Normal(0, 5).
//
// Inference is Hamiltonian Monte Carlo over the unconstrained parameter
// vector (smoothness scales on the log scale), with dual-averaging step
// size adaptation toward a target acceptance rate during the tuning phase.
// Independent chains run concurrently and share no state; all chains must
// finish before posterior summaries are computed. The package's contract is
// to produce draws: convergence is not verified here, and callers are
// expected to inspect the exported draw archive with external diagnostics.
package apc
