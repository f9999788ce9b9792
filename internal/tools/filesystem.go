package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	maxFileBytes  = 256 * 1024
	maxFilesRead  = 50
	readWorkers   = 4
	pathTrimChars = "\"'`,.;:()[]{}"
)

// readFiles reads every file or directory named in the task. Paths are
// resolved against the configured root and may not leave it.
func (r *LocalRunner) readFiles(ctx context.Context, task string) (Response, error) {
	root, err := filepath.Abs(r.opts.Root)
	if err != nil {
		return Response{}, fmt.Errorf("resolve root: %w", err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return Response{}, fmt.Errorf("resolve root: %w", err)
	}

	files := collectFiles(root, task)
	if len(files) == 0 {
		return failed("No readable files or directories were named in the task."), nil
	}
	if len(files) > maxFilesRead {
		files = files[:maxFilesRead]
	}

	contents := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readWorkers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := readFileText(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			contents[i] = fmt.Sprintf("File: %s\nContent:\n%s", rel, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed(err.Error()), nil
	}
	return Response{Stdout: str(strings.Join(contents, "\n\n"))}, nil
}

func collectFiles(root, task string) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, tok := range strings.Fields(task) {
		tok = strings.Trim(tok, pathTrimChars)
		if tok == "" {
			continue
		}
		path, ok := within(root, tok)
		if !ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			add(path)
			continue
		}
		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				continue
			}
			var names []string
			for _, e := range entries {
				if e.Type().IsRegular() {
					names = append(names, e.Name())
				}
			}
			sort.Strings(names)
			for _, n := range names {
				add(filepath.Join(path, n))
			}
		}
	}
	return files
}

// within resolves p against root, following symlinks, and reports whether
// the target stays inside it. root must already be symlink-free.
func within(root, p string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p, err := filepath.EvalSymlinks(filepath.Clean(p))
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

func readFileText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		doc, err := goquery.NewDocumentFromReader(io.LimitReader(f, maxFileBytes))
		if err != nil {
			return "", fmt.Errorf("parse html %s: %w", filepath.Base(path), err)
		}
		doc.Find("script, style, noscript").Remove()
		sel := doc.Find("body")
		if sel.Length() == 0 {
			sel = doc.Selection
		}
		return strings.Join(strings.Fields(sel.Text()), " "), nil
	}

	b, err := io.ReadAll(io.LimitReader(f, maxFileBytes))
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", filepath.Base(path), err)
	}
	return string(b), nil
}
