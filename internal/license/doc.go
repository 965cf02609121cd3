// Package license implements the licensing core of the conversion product:
// the activation state machine, trial accounting, and the feature gate every
// paid converter consults.
//
// The Manager owns the process-wide license state. It is constructed once at
// startup and passed to whatever needs licensing decisions; there is no
// package-level mutable state. Activation verifies the key signature offline
// first, then consults the online backend when reachable (the backend's
// verdict is authoritative because it knows about revocation the signature
// cannot express). When the backend is unreachable, a correctly signed key
// still activates with "offline" confirmation and is re-validated
// opportunistically on later status queries.
//
// The feature gate is a static table from feature name to minimum tier plus
// per-tier file size ceilings. Converters call CheckFeatureAccess and
// CheckFileSizeLimit before doing work and RecordConversionAttempt after;
// the latter never fails.
package license
