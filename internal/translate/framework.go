package translate

import "strings"

// libraryUpgradeMap rewrites a library path that no longer exists on
// current SDKs to its modern replacement.
var libraryUpgradeMap = map[string]string{
	"/usr/lib/libextension": "/System/Library/Frameworks/Foundation.framework/Foundation",
}

// UpgradeLibrary rewrites lib (with any extension stripped before the
// lookup) to its modern replacement if one is known, and returns lib
// unchanged otherwise.
func UpgradeLibrary(lib string) string {
	ext := extOf(lib)
	base := strings.TrimSuffix(lib, ext)
	if replacement, ok := libraryUpgradeMap[base]; ok {
		return replacement
	}
	return lib
}

// extOf returns the final "." extension of path: everything from the
// last dot in the final path component onward, unless that dot is the
// component's first character.
func extOf(path string) string {
	slash := strings.LastIndexByte(path, '/')
	base := path[slash+1:]
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return ""
	}
	return base[dot:]
}
