// Package preview assembles the Vite + React + Tailwind project that renders a
// generated component inside the sandbox.
package preview

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"

	"github.com/bmatcuk/doublestar/v4"
)

//go:embed skeleton
var skeleton embed.FS

const appTemplatePath = "src/App.tsx.tmpl"

var (
	appTemplate   = template.Must(template.ParseFS(skeleton, "skeleton/"+appTemplatePath))
	identifier    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	nameStrip     = regexp.MustCompile(`[^a-zA-Z0-9\-_ ]`)
	nameSeparator = regexp.MustCompile(`[-_ ]+(.)`)
)

// CodeFile is one file produced by the converter, as shown in the editor.
type CodeFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ComponentPath is where the generated component lives inside the project.
func ComponentPath(name string) string { return "src/components/" + name + ".tsx" }

// StylePath is where the component's stylesheet lives inside the project.
func StylePath(name string) string { return "src/components/" + name + ".css" }

// ProjectFiles returns the flat file map of the preview project.
func ProjectFiles(componentName, componentCode, componentCSS string) (map[string]string, error) {
	if !identifier.MatchString(componentName) {
		return nil, fmt.Errorf("invalid component name %q", componentName)
	}
	files := map[string]string{}
	err := fs.WalkDir(skeleton, "skeleton", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(p, "skeleton/")
		if rel == appTemplatePath {
			return nil
		}
		data, err := skeleton.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read project skeleton: %w", err)
	}

	var app strings.Builder
	if err := appTemplate.Execute(&app, struct{ Name string }{componentName}); err != nil {
		return nil, fmt.Errorf("render App.tsx: %w", err)
	}
	files["src/App.tsx"] = app.String()
	files[ComponentPath(componentName)] = componentCode
	files[StylePath(componentName)] = componentCSS
	return files, nil
}

// BuildProject is ProjectFiles as a mountable tree.
func BuildProject(componentName, componentCode, componentCSS string) (Tree, error) {
	files, err := ProjectFiles(componentName, componentCode, componentCSS)
	if err != nil {
		return nil, err
	}
	return FromFiles(files), nil
}

func matches(pattern, name string) bool {
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

func isReactSource(f CodeFile) bool {
	if matches("**/*.jsx", f.Name) {
		return true
	}
	return matches("**/*.tsx", f.Name) && !matches("**/*.lite.tsx", f.Name) &&
		strings.Contains(f.Content, `from "react"`)
}

func isComponentCSS(f CodeFile, componentName string) bool {
	return matches("**/*.css", f.Name) && strings.Contains(strings.ToLower(f.Name), strings.ToLower(componentName))
}

func findReact(files []CodeFile) (CodeFile, bool) {
	for _, f := range files {
		if isReactSource(f) {
			return f, true
		}
	}
	return CodeFile{}, false
}

func findCSS(files []CodeFile, componentName string) (CodeFile, bool) {
	for _, f := range files {
		if isComponentCSS(f, componentName) {
			return f, true
		}
	}
	return CodeFile{}, false
}

// ExtractReactFiles picks the React source and the component stylesheet from the
// converter output, falling back to placeholders so the preview always builds.
func ExtractReactFiles(files []CodeFile, componentName string) (code, css string) {
	code = fmt.Sprintf(`export default function %s() {
  return <div className="p-4 text-zinc-400">No React output. Select React in frameworks.</div>;
}`, componentName)
	css = fmt.Sprintf("/* %s */", componentName)

	if f, ok := findReact(files); ok && f.Content != "" {
		code = f.Content
	}
	if f, ok := findCSS(files, componentName); ok && f.Content != "" {
		css = f.Content
	}
	return code, css
}

// PathToFileName maps sandbox paths to the editor file that feeds them, so edits
// can be forwarded to a live preview.
func PathToFileName(files []CodeFile, componentName string) map[string]string {
	mapping := map[string]string{}
	if f, ok := findReact(files); ok {
		mapping[ComponentPath(componentName)] = f.Name
	}
	if f, ok := findCSS(files, componentName); ok {
		mapping[StylePath(componentName)] = f.Name
	}
	return mapping
}

// ComponentName turns a free-form label into a PascalCase identifier.
func ComponentName(raw string) string {
	cleaned := nameStrip.ReplaceAllString(raw, "")
	cleaned = nameSeparator.ReplaceAllStringFunc(cleaned, func(m string) string {
		return strings.ToUpper(m[len(m)-1:])
	})
	cleaned = strings.TrimRight(cleaned, "-_ ")
	if cleaned == "" {
		return "MyComponent"
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}
