// Package dedupe remembers recently seen change-feed event ids so that a
// re-delivered envelope can be dropped before it reaches reconciliation.
package dedupe
