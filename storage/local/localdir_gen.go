//go:build !linux

package local

func renameNoReplace(src, dst string) error {
	return linkNoReplace(src, dst)
}
