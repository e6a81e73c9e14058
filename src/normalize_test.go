package src

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEntryPointsDropsDuplicates(t *testing.T) {
	files := FileSet{
		"/App.tsx":   "canonical",
		"/App.js":    "dupe",
		"App.jsx":    "dupe",
		"/index.tsx": "entry",
	}
	NormalizeEntryPoints(files)
	assert.Equal(t, FileSet{"/App.tsx": "canonical", "/index.tsx": "entry"}, files)
}

func TestNormalizeEntryPointsCaseInsensitive(t *testing.T) {
	files := FileSet{"/APP.JS": "dupe", "/App.tsx": "keep"}
	NormalizeEntryPoints(files)
	assert.NotContains(t, files, "/APP.JS")
	assert.Contains(t, files, "/App.tsx")
}

func TestNormalizeEntryPointsNeverRemovesCanonical(t *testing.T) {
	files := FileSet{"App.tsx": "unslashed", "/app.tsx": "lower"}
	NormalizeEntryPoints(files)
	assert.Len(t, files, 2)
}

func TestNormalizeEntryPointsIdempotent(t *testing.T) {
	files := FileSet{"/App.tsx": "a", "/App.js": "b"}
	NormalizeEntryPoints(files)
	first := files.Clone()
	NormalizeEntryPoints(files)
	assert.Equal(t, first, files)
}

func TestHasEntryPoint(t *testing.T) {
	assert.True(t, HasEntryPoint(FileSet{"/App.tsx": ""}))
	assert.True(t, HasEntryPoint(FileSet{"App.tsx": ""}))
	assert.False(t, HasEntryPoint(FileSet{"/index.tsx": ""}))
	assert.False(t, HasEntryPoint(FileSet{}))
}
