// Package export renders scripts and transcripts into downloadable files.
// Every renderer is pure: it reads its input and returns new bytes.
package export

// Text returns the script bytes unchanged.
func Text(script string) []byte {
	return []byte(script)
}
