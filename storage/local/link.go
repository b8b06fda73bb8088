package local

import "os"

// linkNoReplace hard-links the file to dst and removes the source.
// Link fails if dst already exists, which makes the commit atomic without replacing the file.
func linkNoReplace(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
