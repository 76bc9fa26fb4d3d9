// Package sandbox turns relative and engine-absolute paths into filesystem
// paths confined to the asset root. Nothing else in the engine builds
// filesystem paths.
package sandbox

import (
	"runtime"
	"strings"

	"github.com/plate/engine/internal/core/errs"
)

var BadPath = errs.New(700, "Path is outside of the asset directory")

const (
	reasonDrive    = "drive-by-letter"
	reasonAbsolute = "../ in absolute"
	reasonEscape   = "escape sandbox"
)

// driveLetters enables the C:\ check.
var driveLetters = runtime.GOOS == "windows"

// DirContext is a canonical directory relative to the asset root: forward
// slashes, no leading slash, no "." or ".." or empty segments. A non-empty
// context ends with a slash.
type DirContext struct {
	dir string
}

// Dir returns the context as a string, "" for the asset root itself.
func (d DirContext) Dir() string { return d.dir }

func (d DirContext) String() string { return "/" + d.dir }

// Append moves the context into the directory part of path. Engine-absolute
// paths (leading slash) start over from the asset root.
func (d DirContext) Append(path string) (DirContext, error) {
	if path == "" {
		return d, nil
	}
	if err := checkDrive(path); err != nil {
		return DirContext{}, err
	}
	if strings.HasPrefix(path, "/") {
		trimmed := strings.TrimLeft(path, "/")
		if hasParent(trimmed) {
			return DirContext{}, errs.Detailed(BadPath, reasonAbsolute)
		}
		dir, err := canonical(dirPart(trimmed))
		if err != nil {
			return DirContext{}, err
		}
		return DirContext{dir: dir}, nil
	}
	dir, err := canonical(d.dir + dirPart(path))
	if err != nil {
		return DirContext{}, err
	}
	return DirContext{dir: dir}, nil
}

// Resolve returns path relative to the asset root, canonicalized, without
// the root prefix.
func (d DirContext) Resolve(path string) (string, error) {
	if err := checkDrive(path); err != nil {
		return "", err
	}
	var full string
	if strings.HasPrefix(path, "/") {
		full = strings.TrimLeft(path, "/")
		if hasParent(full) {
			return "", errs.Detailed(BadPath, reasonAbsolute)
		}
	} else {
		full = d.dir + path
	}
	c, err := canonical(full)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(c, "/"), nil
}

func dirPart(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i+1]
}

// hasParent catches "../" as well as a trailing "..".
func hasParent(path string) bool {
	if strings.Contains(path, "../") {
		return true
	}
	return path == ".." || strings.HasSuffix(path, "/..")
}

func checkDrive(path string) error {
	if !driveLetters {
		return nil
	}
	for i := 1; i+1 < len(path); i++ {
		if path[i] == ':' && path[i+1] == '\\' && isAlpha(path[i-1]) {
			return errs.Detailed(BadPath, reasonDrive)
		}
	}
	return nil
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// canonical drops empty and "." segments and folds "seg/.." pairs. A ".."
// with nothing left to fold is an escape. Directory inputs (trailing slash)
// keep their trailing slash.
func canonical(path string) (string, error) {
	isDir := path == "" || strings.HasSuffix(path, "/")
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".":
		case "..":
			if len(out) == 0 {
				return "", errs.Detailed(BadPath, reasonEscape)
			}
			out = out[:len(out)-1]
		default:
			out = append(out, p)
		}
	}
	joined := strings.Join(out, "/")
	if isDir && joined != "" {
		joined += "/"
	}
	return joined, nil
}

// Root is the asset directory every resolved path lives under.
type Root struct {
	dir string
}

// NewRoot normalizes dir by stripping leading and trailing slashes.
func NewRoot(dir string) Root {
	return Root{dir: strings.Trim(dir, "/")}
}

func (r Root) Dir() string { return r.dir }

// Resolve maps path, seen from ctx, to a filesystem path under the root.
func (r Root) Resolve(ctx DirContext, path string) (string, error) {
	rel, err := ctx.Resolve(path)
	if err != nil {
		return "", err
	}
	return r.Join(rel), nil
}

// Join prefixes an already canonical relative path with the root.
func (r Root) Join(rel string) string {
	switch {
	case r.dir == "":
		return rel
	case rel == "":
		return r.dir
	}
	return r.dir + "/" + rel
}
