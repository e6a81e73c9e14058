package src

import "strings"

// CanonicalEntryPoint is the single React entry file every generated
// project is expected to carry.
const CanonicalEntryPoint = "/App.tsx"

// Legacy JavaScript entry files the coder sometimes emits alongside the
// canonical TypeScript one. Keeping both confuses the sandbox bundler, so
// these are dropped from the file set. Comparison ignores case and a
// single leading slash.
var entryPointDenylist = map[string]struct{}{
	"app.js":  {},
	"app.jsx": {},
}

// NormalizeEntryPoints removes denylisted duplicate entry files from a
// generated file set, in place, and returns it. The canonical /App.tsx is
// never removed, whatever its spelling. The operation is idempotent.
func NormalizeEntryPoints(files FileSet) FileSet {
	canonical := strings.ToLower(strings.TrimPrefix(CanonicalEntryPoint, "/"))
	for path := range files {
		key := strings.ToLower(strings.TrimPrefix(path, "/"))
		if key == canonical {
			continue
		}
		if _, banned := entryPointDenylist[key]; banned {
			delete(files, path)
		}
	}
	return files
}

// HasEntryPoint reports whether the file set carries the canonical entry
// file, with or without the leading slash.
func HasEntryPoint(files FileSet) bool {
	if _, ok := files[CanonicalEntryPoint]; ok {
		return true
	}
	_, ok := files[strings.TrimPrefix(CanonicalEntryPoint, "/")]
	return ok
}
