package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode"
)

var fileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.go$`)

// Source is one descriptor file on disk.
type Source struct {
	Version string
	Name    string // snake_case part of the file name
	Path    string
}

// ScanDir lists the descriptor files in dir, ascending by version. Test
// files and anything not named <version>_<name>.go are ignored.
func ScanDir(dir string) ([]Source, error) {
	return ScanFS(os.DirFS(dir), ".", dir)
}

// ScanFS scans root inside fsys; prefix is joined onto the returned paths.
func ScanFS(fsys fs.FS, root, prefix string) ([]Source, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}
	seen := map[string]string{}
	var out []Source
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), "_test.go") {
			continue
		}
		m := fileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if other, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate version %s: %s and %s", m[1], other, e.Name())
		}
		seen[m[1]] = e.Name()
		out = append(out, Source{Version: m[1], Name: m[2], Path: filepath.Join(prefix, root, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

var ErrVersionExists = errors.New("version already exists")

var invalidID = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// Scaffold writes <version>_<snake>.go and its _test.go into dir. The
// descriptor id is <version>-<name> with unsafe characters replaced by '-'.
func Scaffold(dir, name string, now time.Time) (Source, error) {
	idName := strings.Trim(invalidID.ReplaceAllString(strings.TrimSpace(name), "-"), "-")
	if idName == "" {
		return Source{}, fmt.Errorf("invalid descriptor name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Source{}, err
	}
	existing, err := ScanDir(dir)
	if err != nil {
		return Source{}, err
	}
	version := now.UTC().Format("20060102150405")
	for _, s := range existing {
		if s.Version == version {
			return Source{}, fmt.Errorf("%w: %s", ErrVersionExists, s.Path)
		}
	}

	data := scaffoldData{
		Package: packageName(dir),
		Version: version,
		ID:      version + "-" + idName,
		Var:     exported(idName),
	}
	src := Source{Version: version, Name: Snake(idName)}
	base := filepath.Join(dir, version+"_"+src.Name)
	src.Path = base + ".go"
	if err := render(descriptorTmpl, data, src.Path); err != nil {
		return Source{}, err
	}
	if err := render(testTmpl, data, base+"_test.go"); err != nil {
		return Source{}, err
	}
	return src, nil
}

// Snake lowercases s and turns every run of separators into one underscore.
func Snake(s string) string {
	var b strings.Builder
	under := false
	for i, r := range s {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && !under {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			under = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			under = false
		default:
			if !under && b.Len() > 0 {
				b.WriteByte('_')
				under = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func exported(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(Snake(s), "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	out := b.String()
	if out == "" || unicode.IsDigit(rune(out[0])) {
		out = "M" + out
	}
	return out
}

func packageName(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "migrations"
	}
	p := strings.ReplaceAll(Snake(filepath.Base(abs)), "_", "")
	if p == "" || unicode.IsDigit(rune(p[0])) {
		return "migrations"
	}
	return p
}

type scaffoldData struct {
	Package string
	Version string
	ID      string
	Var     string
}

var descriptorTmpl = template.Must(template.New("descriptor").Parse(`package {{.Package}}

import (
	"context"

	"github.com/mirajehossain/deskmigrate/internal/migrator"
	"github.com/mirajehossain/deskmigrate/internal/schema"
)

func init() {
	Registry.Register({{.Var}})
}

var {{.Var}} = migrator.Descriptor{
	ID:   "{{.ID}}",
	Up:   Up_{{.Version}},
	Down: Down_{{.Version}},
}

func Up_{{.Version}}(ctx context.Context, q schema.QueryInterface) error {
	return nil
}

func Down_{{.Version}}(ctx context.Context, q schema.QueryInterface) error {
	return nil
}
`))

var testTmpl = template.Must(template.New("test").Parse(`package {{.Package}}

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUp_{{.Version}}(t *testing.T) {
	d, ok := Registry.Get({{.Var}}.ID)
	require.True(t, ok)
	require.Equal(t, "{{.Version}}", d.Version())
}
`))

func render(t *template.Template, data scaffoldData, path string) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("format %s: %w", path, err)
	}
	return os.WriteFile(path, src, 0o644)
}
