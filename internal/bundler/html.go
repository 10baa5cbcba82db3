package bundler

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	prierrors "github.com/conneroisu/pri/internal/errors"
)

// TemplateFile is the HTML template every emitted page is rendered from.
const TemplateFile = ".temp/index.html"

// TemplateArgs are spliced into the generated HTML template.
type TemplateArgs struct {
	Title    string
	BaseHref string
	// DashboardServerPort is exposed to the page as window.dashboardServerPort
	// when non-zero.
	DashboardServerPort int
	// AppendHead and AppendBody are HTML fragments appended to head and body.
	AppendHead string
	AppendBody string
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func appendFragment(parent *html.Node, fragment string) error {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// RenderTemplate renders the page template for args. The bundle mounts into
// the #root element.
func RenderTemplate(args TemplateArgs) (string, error) {
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, "charset", "utf-8"))
	head.AppendChild(element(atom.Meta, "name", "viewport", "content", "width=device-width, initial-scale=1"))

	title := element(atom.Title)
	title.AppendChild(&html.Node{Type: html.TextNode, Data: args.Title})
	head.AppendChild(title)

	if args.BaseHref != "" {
		head.AppendChild(element(atom.Base, "href", EnsureEndWithSlash(args.BaseHref)))
	}
	if err := appendFragment(head, args.AppendHead); err != nil {
		return "", fmt.Errorf("invalid head fragment: %w", err)
	}

	body := element(atom.Body)
	body.AppendChild(element(atom.Div, "id", "root"))
	if args.DashboardServerPort > 0 {
		script := element(atom.Script)
		script.AppendChild(&html.Node{
			Type: html.TextNode,
			Data: fmt.Sprintf("window.dashboardServerPort = %d;", args.DashboardServerPort),
		})
		body.AppendChild(script)
	}
	if err := appendFragment(body, args.AppendBody); err != nil {
		return "", fmt.Errorf("invalid body fragment: %w", err)
	}

	root := element(atom.Html, "lang", "en")
	root.AppendChild(head)
	root.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// WriteTemplate renders args to <root>/TemplateFile and returns its path.
func WriteTemplate(fs afero.Fs, root string, args TemplateArgs) (string, error) {
	content, err := RenderTemplate(args)
	if err != nil {
		return "", prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, err.Error())
	}

	path := filepath.Join(root, filepath.FromSlash(TemplateFile))
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", prierrors.FileOperationError("mkdir", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return "", prierrors.FileOperationError("write", path, err)
	}
	return path, nil
}
