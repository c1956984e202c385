// Package txn applies a file group's link operations as a unit. Each change
// records a compensating step, so a failure midway restores the destination
// tree before the error surfaces.
package txn
