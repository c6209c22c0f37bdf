// Package loaders turns files into domain documents.
//
// Each sub-package implements driven.Loader for one format. Loaders are
// registered with a Registry at startup and selected by file extension.
package loaders
