// Package mobilemodels fans one user question out to several conversational
// AI backends at once, streams every backend's partial answer, and reconciles
// the results into a single persistable conversation record.
//
// The Chat type owns the observable conversation snapshot. All mutation goes
// through one serialized update path: provider stream folds, question
// submission, retry and edit all submit a pure snapshot transformation that
// is applied atomically. When the last loading provider settles, the turn is
// committed to the conversation store exactly once and the transient turn
// state is cleared.
//
// One backend failing never aborts its siblings: a stream error collapses
// into that provider's answer text and an idle status, and the turn still
// commits. Commit failures leave the turn intact so a later idle transition
// can try again.
//
// Sessions are registered per provider in a provider.Registry; storage and
// settings are consumed through the gateway interfaces in package api.
// Observer hooks receive every lifecycle event and can be bridged to a
// broker topic for out-of-process consumers.
package mobilemodels
