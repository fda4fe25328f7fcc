package workflow

import (
	"cmp"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/dxmate/dxmate/internal/parallel"
	"github.com/dxmate/dxmate/internal/walk"
)

const fieldTableHeader = "|  API Name  | Type  | Description  |\n|---|---|---|\n"

// field is the part of a CustomField definition the table shows.
type field struct {
	FullName    string `xml:"fullName"`
	Type        string `xml:"type"`
	Description string `xml:"description"`

	file string
}

// FieldMarkdown renders the field definitions found in dir, e.g.
// force-app/main/default/objects/Account/fields, as a markdown table with
// one row per file.
func (b *Builder) FieldMarkdown(ctx context.Context, dir string) (string, error) {
	root, err := os.OpenRoot(b.path(dir))
	if err != nil {
		return "", err
	}
	defer func() {
		_ = root.Close()
	}()

	read := func(_ context.Context, e walk.Entry) (field, error) {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
			return field{}, nil
		}
		r, err := e.Open()
		if err != nil {
			return field{}, err
		}
		defer func() {
			_ = r.Close()
		}()
		var f field
		if err := xml.NewDecoder(r).Decode(&f); err != nil {
			return field{}, fmt.Errorf("parsing %s: %w", e.Path(), err)
		}
		f.file = e.Name()
		return f, nil
	}

	fields, err := parallel.Collect(parallel.NewMap(ctx, b.scanLimit, read).Iter(walk.Dir(ctx, root)))
	if err != nil {
		return "", err
	}
	fields = slices.DeleteFunc(fields, func(f field) bool { return f.file == "" })
	slices.SortFunc(fields, func(x, y field) int { return cmp.Compare(x.file, y.file) })

	var sb strings.Builder
	sb.WriteString(fieldTableHeader)
	for _, f := range fields {
		fmt.Fprintf(&sb, "|  %s  | %s  | %s  |\n", cell(f.FullName), cell(f.Type), cell(f.Description))
	}
	return sb.String(), nil
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func cell(s string) string {
	return cellReplacer.Replace(strings.TrimSpace(s))
}
