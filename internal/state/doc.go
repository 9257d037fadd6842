// Package state defines the enumerations stored in job and flow documents.
//
// Each enumeration is a string type whose value is what gets persisted;
// ToDocument emits that value and the Parse functions reject anything
// outside the known set.
package state
