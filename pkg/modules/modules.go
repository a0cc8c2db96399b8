// Package modules lists the standard library pieces a fresh environment
// needs before the interpreter can start.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Variant identifies an interpreter implementation and platform family.
type Variant string

const (
	Posix   Variant = "posix"
	Windows Variant = "win32"
	Jython  Variant = "jython"
	PyPy    Variant = "pypy"
)

var base = []string{
	"os", "posix", "posixpath", "nt", "ntpath", "genericpath",
	"fnmatch", "locale", "encodings", "codecs",
	"stat", "UserDict", "readline", "copy_reg", "types",
	"re", "sre", "sre_parse", "sre_constants", "sre_compile",
	"zlib",
}

var (
	py26 = []string{"warnings", "linecache", "_abcoll", "abc"}
	py27 = []string{"_weakrefset"}
	py23 = []string{"sets", "__future__"}

	py3 = []string{
		"_abcoll", "warnings", "linecache", "abc", "io",
		"_weakrefset", "copyreg", "tempfile", "random",
		"__future__", "collections", "keyword", "tarfile",
		"shutil", "struct", "copy",
	}
	py33 = []string{
		"base64", "bisect", "_dummy_thread", "hashlib", "heapq",
		"hmac", "reprlib", "rlcompleter", "weakref",
	}

	pypy = []string{"traceback", "linecache"}
)

// Set is a sorted, duplicate free list of module names.
type Set []string

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := slices.BinarySearch(s, name)
	return ok
}

// isSuperset reports whether s holds every name in other.
func (s Set) isSuperset(other Set) bool {
	for _, name := range other {
		if !s.Contains(name) {
			return false
		}
	}
	return true
}

func newSet(groups ...[]string) Set {
	var all []string
	for _, g := range groups {
		all = append(all, g...)
	}
	slices.Sort(all)
	return Set(slices.Compact(all))
}

// Required returns the bootstrap modules for an interpreter version and
// variant.
//
// The 3.x extension set includes every 2.6 and 2.7 addition, so
// Required(3, 3, Posix) is a superset of Required(2, 7, Posix).
func Required(major, minor int, v Variant) Set {
	groups := [][]string{base}

	switch major {
	case 2:
		if minor >= 6 {
			groups = append(groups, py26)
		}
		if minor >= 7 {
			groups = append(groups, py27)
		}
		if minor <= 3 {
			groups = append(groups, py23)
		}
	case 3:
		groups = append(groups, py3)
		if minor == 3 {
			groups = append(groups, py33)
		}
	}

	if v == PyPy {
		groups = append(groups, pypy)
	}
	return newSet(groups...)
}

// Universe returns every module name any version or variant may require.
// The host probe looks these up once.
func Universe() Set {
	return newSet(base, py26, py27, py23, py3, py33, pypy)
}

// RequiredFiles returns the support file stems copied from stdlib dirs.
func RequiredFiles(major, minor int) []string {
	config := "config"
	if major == 3 && minor >= 2 {
		config = fmt.Sprintf("config-%d", major)
	}
	return []string{"lib-dynload", config}
}

// Pair is a source file and where it goes in the environment.
type Pair struct {
	Source string
	Dest   string
}

// ListRequiredLibFiles pairs up the entries of each existing stdlib dir whose
// extension stripped name is one of requiredFiles. site-packages is never
// copied. Missing dirs are skipped.
func ListRequiredLibFiles(stdlibDirs []string, libDir string, requiredFiles []string) ([]Pair, error) {
	var pairs []Pair
	for _, dir := range stdlibDirs {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if name == "site-packages" {
				continue
			}
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if !slices.Contains(requiredFiles, stem) {
				continue
			}
			pairs = append(pairs, Pair{
				Source: filepath.Join(dir, name),
				Dest:   filepath.Join(libDir, name),
			})
		}
	}
	return pairs, nil
}
