// Package source normalizes an import source - an in-memory buffer, a zip
// archive, or a filesystem path - into a working directory on disk plus an
// optional known entry file, and owns the lifetime of any temporary
// resources it creates along the way.
package source
