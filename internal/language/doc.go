// Package language defines the immutable language value used throughout the
// resolver. Derivations (country, script, forced) are explicit copies; the
// forced flag always carries over unless overridden.
package language
