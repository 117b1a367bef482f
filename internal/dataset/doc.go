// Package dataset loads the clean rectangular mortality table produced by
// the preprocessing pipeline and pivots it into the age-by-year matrices the
// models consume.
//
// The input contract is one CSV row per (year, sex, age group) with
// population exposure and death counts. Cells with zero or missing exposure
// are treated as unobservable and excluded from fitting rather than imputed
// as zero-rate. Mortality rates use the Haldane correction (D+0.5)/E, which
// keeps every rate strictly positive so the log transform is always defined,
// at the cost of a small upward bias for zero-death cells.
package dataset
