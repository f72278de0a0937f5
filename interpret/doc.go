// Package interpret normalizes provider output into SafeClick records.
//
// Structured verdicts go through DecodeAnalysis, which is all-or-nothing. Free-text reports
// go through ParseTags and SplitSections, which never fail: a missing section becomes
// threat.DataUnavailable. Every function here is pure.
package interpret
