// Package artifact resolves an on-disk model directory of unknown internal
// shape (a single definition file, or a tree with auxiliary data
// subdirectories) into a normalized in-memory map that backends consume when
// building execution contexts.
package artifact

// Kind discriminates how an Entry's payload is interpreted.
type Kind int

const (
	// KindFileContent marks an entry carrying a file's raw bytes, already
	// read into memory.
	KindFileContent Kind = iota

	// KindDirectoryPath marks an entry carrying the filesystem path of a
	// localized temporary copy of a subdirectory, never the original path.
	KindDirectoryPath
)

// Entry is one named unit of a model's on-disk representation.
type Entry struct {
	Kind Kind

	// Bytes holds the file contents when Kind is KindFileContent.
	Bytes []byte

	// Path holds the localized copy's root when Kind is KindDirectoryPath.
	Path string
}

// Map maps entry names to resolved artifacts. It is built fresh per
// resolution pass and owned exclusively by the caller; file and subdirectory
// names share one namespace.
type Map map[string]Entry
