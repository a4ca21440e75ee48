package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shaun/figcode/server/internal/preview"
	"github.com/shaun/figcode/server/internal/sandbox"
)

var (
	previewComponent string
	previewCSS       string
	previewFrom      string
	previewName      string
	previewWatch     bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the live preview of a component on this machine",
	Long: `Preview mounts the component into a Vite + React + Tailwind project, installs
dependencies, starts the dev server and prints its URL. The component is either
given directly with --component/--css or picked from a converter output directory
with --from. With --watch, edits to the component files are written into the
running preview. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewComponent, "component", "", "Component source file (.tsx/.jsx)")
	previewCmd.Flags().StringVar(&previewCSS, "css", "", "Component stylesheet")
	previewCmd.Flags().StringVar(&previewFrom, "from", "", "Converter output directory to pick the React component and stylesheet from")
	previewCmd.Flags().StringVar(&previewName, "name", "", "Component name (default: derived from the component file or --from directory name)")
	previewCmd.Flags().BoolVarP(&previewWatch, "watch", "w", false, "Write file changes into the running preview")
	previewCmd.MarkFlagsOneRequired("component", "from")
	previewCmd.MarkFlagsMutuallyExclusive("component", "from")
	previewCmd.MarkFlagsMutuallyExclusive("css", "from")
}

// previewSource is where the component comes from: a component file (plus an
// optional stylesheet) or a converter output directory.
type previewSource struct {
	name      string
	component string
	css       string
	from      string
}

func newPreviewSource(name, component, css, from string) previewSource {
	if name == "" {
		base := filepath.Base(filepath.Clean(from))
		if from == "" {
			base = filepath.Base(component)
			base = strings.TrimSuffix(base, filepath.Ext(base))
		}
		name = preview.ComponentName(base)
	}
	return previewSource{name: name, component: component, css: css, from: from}
}

// loadCodeFiles reads every file under dir, named by its slash-separated path
// relative to dir, the way the converter names its output.
func loadCodeFiles(dir string) ([]preview.CodeFile, error) {
	fsys := os.DirFS(dir)
	names, err := doublestar.Glob(fsys, "**", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no files in %s", dir)
	}
	sort.Strings(names)
	files := make([]preview.CodeFile, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		files = append(files, preview.CodeFile{Name: name, Content: string(data)})
	}
	return files, nil
}

func (s previewSource) inputs() (code, css string, err error) {
	if s.from != "" {
		files, err := loadCodeFiles(s.from)
		if err != nil {
			return "", "", err
		}
		code, css = preview.ExtractReactFiles(files, s.name)
		return code, css, nil
	}
	data, err := os.ReadFile(s.component)
	if err != nil {
		return "", "", err
	}
	if s.css != "" {
		styles, err := os.ReadFile(s.css)
		if err != nil {
			return "", "", err
		}
		css = string(styles)
	}
	return string(data), css, nil
}

func (s previewSource) tree() (preview.Tree, error) {
	code, css, err := s.inputs()
	if err != nil {
		return nil, err
	}
	return preview.BuildProject(s.name, code, css)
}

// watched maps each absolute source path to the project path it feeds.
func (s previewSource) watched() (map[string]string, error) {
	targets := map[string]string{}
	if s.from != "" {
		files, err := loadCodeFiles(s.from)
		if err != nil {
			return nil, err
		}
		root, err := filepath.Abs(s.from)
		if err != nil {
			return nil, err
		}
		for target, name := range preview.PathToFileName(files, s.name) {
			targets[filepath.Join(root, filepath.FromSlash(name))] = target
		}
		return targets, nil
	}
	for p, target := range map[string]string{
		s.component: preview.ComponentPath(s.name),
		s.css:       preview.StylePath(s.name),
	} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		targets[abs] = target
	}
	return targets, nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	if !sandbox.Supported() {
		return errors.New(sandbox.UnsupportedMessage)
	}
	src := newPreviewSource(previewName, previewComponent, previewCSS, previewFrom)
	tree, err := src.tree()
	if err != nil {
		return err
	}

	sc := loaded.Sandbox
	m, err := sandbox.NewManager(sandbox.Options{
		Boot:           sandbox.NewLocalBooter(sandbox.LocalOptions{WorkDir: sc.WorkDir}),
		InstallCommand: sc.InstallCommand,
		DevCommand:     sc.DevCommand,
		ReadyTimeout:   sc.ReadyTimeout,
		OnChange: func(st sandbox.Status) {
			fmt.Fprintf(cmd.ErrOrStderr(), "preview: %s\n", st.Phase())
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warnf("[sandbox] close: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := m.BootAndMount(ctx, tree)
	if failed, ok := st.(sandbox.Failed); ok {
		return errors.New(failed.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), m.PreviewURL())

	if previewWatch {
		return watch(ctx, m, src)
	}
	<-ctx.Done()
	return nil
}

// watch forwards every change of a source file into the project file it feeds.
// The parent directories are watched since editors often replace files on save.
func watch(ctx context.Context, m *sandbox.Manager, src previewSource) error {
	targets, err := src.watched()
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := map[string]bool{}
	for p := range targets {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("[sandbox] watch: %v", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			target, ok := targets[filepath.Clean(ev.Name)]
			if !ok || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(ev.Name)
			if err != nil {
				logger.Warnf("[sandbox] reload %s: %v", ev.Name, err)
				continue
			}
			if err := m.WriteFiles(ctx, map[string]string{target: string(data)}); err != nil {
				logger.Warnf("[sandbox] %v", err)
			}
		}
	}
}
