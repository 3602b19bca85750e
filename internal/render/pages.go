package render

import (
	"fmt"
	"io/fs"
	"path"

	"thoughts/web"

	"github.com/gin-contrib/multitemplate"
)

// LoadPages builds gin's page renderer. Each view is executed through the
// base layout with every fragment available to it.
func LoadPages() (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	layouts, err := readAll(web.FS, "templates/layouts/*.html")
	if err != nil {
		return nil, err
	}
	fragments, err := readAll(web.FS, "templates/fragments/*.html")
	if err != nil {
		return nil, err
	}
	views, err := fs.Glob(web.FS, "templates/views/*.html")
	if err != nil {
		return nil, err
	}

	for _, view := range views {
		body, err := fs.ReadFile(web.FS, view)
		if err != nil {
			return nil, err
		}
		// The view comes first so its top-level body is what gets executed.
		files := append([]string{string(body)}, layouts...)
		files = append(files, fragments...)
		r.AddFromStringsFuncs(path.Base(view), FuncMap(), files...)
	}
	return r, nil
}

func readAll(fsys fs.FS, pattern string) ([]string, error) {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no templates match %s", pattern)
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}
