// Package reporter is the client side of the census service: a small,
// fail-silent emitter that applications embed to report anonymous
// daily-usage pings.
//
// A ping carries a SHA-256 digest of a random per-installation id plus a
// project name. No hostnames, addresses, versions, or usage details are
// collected, and the raw id never leaves the machine.
//
// Respecting the user comes first: the reporter honors a project-specific
// opt-out variable as well as the generic TELEMETRY_OPTOUT and TELEMETRY
// variables, and every send is best-effort with a short timeout so that
// telemetry can never slow down or break the embedding application.
package reporter
