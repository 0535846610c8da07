// Package store groups persistence backends. The postgres subpackage holds
// the relational match store; callers depend on the narrow interfaces declared
// where they are consumed, not on this package.
package store
