// Package authkit provides an embeddable authentication engine with
// password + phone-code verification, brute-force lockout, signed JWT
// access/refresh/temp tokens, Redis-backed revocation with family
// cascade, and per-user issuance rate limiting.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build], and all enforcement state
// (lockout counters, codes, revocation marks, rate windows) lives in
// Redis so any number of instances behave as one.
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder],
// [Config], the integration interfaces ([IdentityStore],
// [MembershipResolver], [CodeSender]), and value types. Flow
// coordination — lockout tracking, code verification, revocation, rate
// limiting — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Persist credentials: the application owns user storage and hands
//     authkit an [IdentityStore].
//   - Deliver messages: code transport goes through [CodeSender].
//   - Leak failure detail: wrong-password, unknown-user, and
//     revoked-token cases collapse to coarse sentinel errors; the
//     specific reason appears only on the audit stream.
package authkit
