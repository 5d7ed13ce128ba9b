// Package core defines the shared domain types for protodrive: definition
// files, compilation targets and jobs, the error taxonomy, and the state
// store interface. It has no dependencies on the packages that implement
// the pipeline, so every internal package can import it freely.
package core
