package preview

import (
	"path"
	"sort"
	"strings"
)

// Tree is a directory listing to mount into a sandbox: name → file or subdirectory.
type Tree map[string]Node

type Node struct {
	File      *File `json:"file,omitempty"`
	Directory Tree  `json:"directory,omitempty"`
}

type File struct {
	Contents string `json:"contents"`
}

// FromFiles nests a flat path → contents map. Empty path segments are ignored.
func FromFiles(files map[string]string) Tree {
	tree := Tree{}
	for p, contents := range files {
		parts := splitPath(p)
		if len(parts) == 0 {
			continue
		}
		cur := tree
		for _, dir := range parts[:len(parts)-1] {
			node, ok := cur[dir]
			if !ok || node.Directory == nil {
				node = Node{Directory: Tree{}}
				cur[dir] = node
			}
			cur = node.Directory
		}
		cur[parts[len(parts)-1]] = Node{File: &File{Contents: contents}}
	}
	return tree
}

// Files flattens the tree back into slash-separated paths.
func (t Tree) Files() map[string]string {
	out := map[string]string{}
	t.walk("", func(p, contents string) { out[p] = contents })
	return out
}

// Paths returns every file path in lexical order.
func (t Tree) Paths() []string {
	var out []string
	t.walk("", func(p, _ string) { out = append(out, p) })
	sort.Strings(out)
	return out
}

func (t Tree) walk(prefix string, fn func(p, contents string)) {
	for name, node := range t {
		p := path.Join(prefix, name)
		switch {
		case node.File != nil:
			fn(p, node.File.Contents)
		case node.Directory != nil:
			node.Directory.walk(p, fn)
		}
	}
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
