// Package workspace implements the file operations behind the editor's
// file tree: listing, reading, writing, walking and searching, all confined
// to a single root directory.
package workspace
