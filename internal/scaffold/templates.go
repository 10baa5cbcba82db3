package scaffold

// PriPackageName is the npm package projects depend on for the client
// runtime and type declarations.
const PriPackageName = "pri"

// Template is a source file stub.
type Template struct {
	Name        string
	Description string
	Content     string
}

// TemplateContext holds the values a stub is rendered with.
type TemplateContext struct {
	ComponentName string
	Path          string
	PriPackage    string
	// EntryImport is the import path of the component entry, relative to the
	// generated file.
	EntryImport string
}

// Template names.
const (
	TemplatePage      = "page"
	TemplateLayout    = "layout"
	TemplateNotFound  = "notFound"
	TemplateHomePage  = "homePage"
	TemplateTest      = "test"
	TemplateComponent = "component"
	TemplateDocs      = "docs"
	TemplatePlugin    = "plugin"
)

// BuiltinTemplates returns every stub pri writes.
func BuiltinTemplates() map[string]Template {
	return map[string]Template{
		TemplatePage: {
			Name:        TemplatePage,
			Description: "A new page under src/pages",
			Content: `import * as React from "react"

class Props {}

class State {}

export default class {{ .ComponentName }} extends React.PureComponent<Props, State> {
  public static defaultProps = new Props()
  public state = new State()

  public render() {
    return <div>New page for {{ .Path }}</div>
  }
}
`,
		},
		TemplateLayout: {
			Name:        TemplateLayout,
			Description: "The layout wrapping every page",
			Content: `import * as React from "react"

class Props {}

class State {}

export default class Layout extends React.PureComponent<Props, State> {
  public static defaultProps = new Props()
  public state = new State()

  public render() {
    return <div>{this.props.children}</div>
  }
}
`,
		},
		TemplateNotFound: {
			Name:        TemplateNotFound,
			Description: "The page rendered when no route matches",
			Content: `import * as React from "react"

class Props {}

class State {}

export default class NotFound extends React.PureComponent<Props, State> {
  public static defaultProps = new Props()
  public state = new State()

  public render() {
    return <div>Page not found</div>
  }
}
`,
		},
		TemplateHomePage: {
			Name:        TemplateHomePage,
			Description: "The home page of a new project",
			Content: `import { isDevelopment } from "{{ .PriPackage }}/client"
import * as React from "react"

class Props {}

class State {}

export default class Page extends React.PureComponent<Props, State> {
  public static defaultProps = new Props()
  public state = new State()

  public render() {
    return (
      <div>
        <h1 style={{ "{{" }} display: "flex", alignItems: "center", justifyContent: "center" {{ "}}" }}>Welcome to pri!</h1>
        <p style={{ "{{" }} padding: "10 50px" {{ "}}" }}>Current env: {isDevelopment ? "local" : "prod"}</p>
      </div>
    )
  }
}
`,
		},
		TemplateTest: {
			Name:        TemplateTest,
			Description: "Example jest test",
			Content: `test("Example", () => {
  expect(true).toBe(true)
})
`,
		},
		TemplateComponent: {
			Name:        TemplateComponent,
			Description: "Component package entry",
			Content: `import * as React from "react"

export default () => <div>My Component</div>
`,
		},
		TemplateDocs: {
			Name:        TemplateDocs,
			Description: "Component docs page",
			Content: `import Component from "{{ .EntryImport }}"
import * as React from "react"

class Props {}

class State {}

export default class Page extends React.PureComponent<Props, State> {
  public static defaultProps = new Props()
  public state = new State()

  public render() {
    return <Component />
  }
}
`,
		},
		TemplatePlugin: {
			Name:        TemplatePlugin,
			Description: "Plugin package entry",
			Content: `import { pri } from "{{ .PriPackage }}"

export default async () => {
  pri.commands.registerCommand({
    name: ["deploy"],
    action: async () => {
      //
    },
  })
}
`,
		},
	}
}
