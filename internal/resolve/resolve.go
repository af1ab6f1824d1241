// Package resolve maps module specifiers to npm package names.
package resolve

import "strings"

// Package returns the package a module specifier refers to. It reports false
// for local modules: relative or absolute paths, and the empty specifier.
//
// Scoped specifiers keep their first two segments ("@scope/pkg/sub" is
// "@scope/pkg"); a scoped specifier with no package segment is returned
// unchanged. Unscoped specifiers keep their first segment.
//
// The "@" scope marker is part of the returned name: it is how npm spells
// the package, and install commands need it verbatim.
func Package(specifier string) (string, bool) {
	if specifier == "" || strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		return "", false
	}

	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1], true
		}
		return specifier, true
	}
	return parts[0], true
}
