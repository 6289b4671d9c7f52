// Package registry stores graph definitions in memory and assigns their
// identifiers. Contents do not survive a restart.
package registry
