// Package drugdata implements driven.DrugDataProvider over HTTP.
//
// RxNorm (RxNav REST) resolves names to concept identifiers and related
// names; OpenFDA supplies adverse-event reports and label interaction
// text. Each source has its own rate limiter and circuit breaker, and
// every failure is reported as an error wrapping domain.ErrProvider.
// Payloads are returned verbatim; the core validates their shape.
package drugdata
