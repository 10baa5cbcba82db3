// Package commands holds the command tree plugins build incrementally and
// compiles it into the cobra command hierarchy.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	prierrors "github.com/conneroisu/pri/internal/errors"
)

// OptionKind is the value type of a command option.
type OptionKind int

const (
	KindBool OptionKind = iota
	KindString
)

// Option describes one flag accepted by a command.
type Option struct {
	Name        string
	Alias       string
	Description string
	Kind        OptionKind
	Required    bool
	Default     string
}

// Hook is a before/after hook or the action of a command.
type Hook func(ctx context.Context, inv *Invocation) error

// Registration is the first, primary declaration of a command path.
type Registration struct {
	Path         []string
	Aliases      []string
	Description  string
	Args         []string
	Options      []Option
	Action       Hook
	BeforeAction Hook
	AfterAction  Hook
	// Owner names the plugin registering the command.
	Owner string
}

// Expansion adds hooks to an existing command.
type Expansion struct {
	Path         []string
	BeforeAction Hook
	AfterAction  Hook
	Owner        string
}

// Node is one command in the tree.
type Node struct {
	Name        string
	Aliases     []string
	Description string
	Args        []string
	Options     []Option
	Owner       string

	action     Hook
	before     []Hook
	after      []Hook
	registered bool
	path       []string
	children   map[string]*Node
	order      []string
}

// Path returns the full name path of the node.
func (n *Node) Path() []string {
	return append([]string(nil), n.path...)
}

// HasAction reports whether a primary registration supplied an action.
func (n *Node) HasAction() bool {
	return n.action != nil
}

// Children returns child nodes in registration order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.children[name])
	}
	return out
}

// HookCounts returns the number of before and after hooks.
func (n *Node) HookCounts() (before, after int) {
	return len(n.before), len(n.after)
}

func (n *Node) child(token string) *Node {
	if c, ok := n.children[token]; ok {
		return c
	}
	for _, name := range n.order {
		c := n.children[name]
		for _, alias := range c.Aliases {
			if alias == token {
				return c
			}
		}
	}
	return nil
}

func newNode(name string, path []string) *Node {
	return &Node{
		Name:     name,
		path:     append([]string(nil), path...),
		children: make(map[string]*Node),
	}
}

// Registry is the command tree.
type Registry struct {
	mu   sync.RWMutex
	root *Node
}

// NewRegistry creates an empty command tree.
func NewRegistry() *Registry {
	return &Registry{root: newNode("", nil)}
}

// Register declares the command at reg.Path. Missing intermediate segments
// become action-less group nodes. A path that was already registered is a
// conflict.
func (r *Registry) Register(reg Registration) error {
	if err := validatePath(reg.Path); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parent := r.root
	for i, segment := range reg.Path[:len(reg.Path)-1] {
		next, ok := parent.children[segment]
		if !ok {
			next = newNode(segment, reg.Path[:i+1])
			parent.children[segment] = next
			parent.order = append(parent.order, segment)
		}
		parent = next
	}

	name := reg.Path[len(reg.Path)-1]
	node, exists := parent.children[name]
	if exists && node.registered {
		return prierrors.CommandConflict(reg.Path, reg.Owner).
			WithContext("registered_by", node.Owner)
	}
	if other := parent.child(name); other != nil && other != node {
		return prierrors.CommandConflict(reg.Path, reg.Owner).
			WithContext("registered_by", other.Owner)
	}

	for _, alias := range reg.Aliases {
		if other := parent.child(alias); other != nil && other != node {
			return prierrors.CommandConflict(append(append([]string(nil), reg.Path[:len(reg.Path)-1]...), alias), reg.Owner).
				WithContext("registered_by", other.Owner)
		}
	}

	seen := make(map[string]bool, len(reg.Options)*2)
	for _, opt := range reg.Options {
		if opt.Name == "" {
			return prierrors.NewValidationError(prierrors.ErrCodeInvalidCommand,
				fmt.Sprintf("command %q declares an option without a name", strings.Join(reg.Path, " ")))
		}
		for _, key := range []string{opt.Name, opt.Alias} {
			if key == "" {
				continue
			}
			if seen[key] {
				return prierrors.NewValidationError(prierrors.ErrCodeInvalidCommand,
					fmt.Sprintf("command %q declares option %q twice", strings.Join(reg.Path, " "), key))
			}
			seen[key] = true
		}
	}

	if !exists {
		node = newNode(name, reg.Path)
		parent.children[name] = node
		parent.order = append(parent.order, name)
	}

	node.Aliases = append([]string(nil), reg.Aliases...)
	node.Description = reg.Description
	node.Args = append([]string(nil), reg.Args...)
	node.Options = append([]Option(nil), reg.Options...)
	node.Owner = reg.Owner
	node.action = reg.Action
	node.registered = true
	// Hooks added by earlier expansions of a group node run first.
	if reg.BeforeAction != nil {
		node.before = append(node.before, reg.BeforeAction)
	}
	if reg.AfterAction != nil {
		node.after = append(node.after, reg.AfterAction)
	}

	return nil
}

// Expand appends hooks to an existing command without touching its action or
// options.
func (r *Registry) Expand(exp Expansion) error {
	if err := validatePath(exp.Path); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.lookup(exp.Path)
	if node == nil {
		return prierrors.UnknownCommand(exp.Path).WithPlugin(exp.Owner)
	}

	if exp.BeforeAction != nil {
		node.before = append(node.before, exp.BeforeAction)
	}
	if exp.AfterAction != nil {
		node.after = append(node.after, exp.AfterAction)
	}

	return nil
}

// Lookup returns the node registered at path by primary names.
func (r *Registry) Lookup(path []string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node := r.lookup(path)
	return node, node != nil
}

func (r *Registry) lookup(path []string) *Node {
	node := r.root
	for _, segment := range path {
		next, ok := node.children[segment]
		if !ok {
			return nil
		}
		node = next
	}
	if node == r.root {
		return nil
	}
	return node
}

// Root returns the top-level commands in registration order.
func (r *Registry) Root() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.root.Children()
}

// Walk visits every node depth-first, parents before children.
func (r *Registry) Walk(fn func(*Node)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var visit func(*Node)
	visit = func(n *Node) {
		for _, c := range n.Children() {
			fn(c)
			visit(c)
		}
	}
	visit(r.root)
}

// Resolve walks argv by name or alias and returns the deepest matching node
// and the tokens that were not consumed as command segments. Flags are never
// consumed as segments. The node is nil when argv names no command.
func (r *Registry) Resolve(argv []string) (*Node, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node := r.root
	rest := make([]string, 0, len(argv))
	descending := true

	for i, token := range argv {
		if token == "--" {
			rest = append(rest, argv[i:]...)
			break
		}
		if strings.HasPrefix(token, "-") || !descending {
			rest = append(rest, token)
			continue
		}
		if next := node.child(token); next != nil {
			node = next
			continue
		}
		descending = false
		rest = append(rest, token)
	}

	if node == r.root {
		return nil, rest
	}
	return node, rest
}

// Run executes before hooks, the action, then after hooks. The first error
// aborts the remaining phases.
func (r *Registry) Run(ctx context.Context, node *Node, inv *Invocation) error {
	if node == nil {
		return prierrors.UnknownCommand(nil)
	}
	if inv == nil {
		inv = NewInvocation(node.Path(), nil)
	}

	r.mu.RLock()
	before := append([]Hook(nil), node.before...)
	action := node.action
	after := append([]Hook(nil), node.after...)
	r.mu.RUnlock()

	if action == nil {
		return prierrors.NewCommandError(prierrors.ErrCodeInvalidCommand,
			fmt.Sprintf("command %q has no action", strings.Join(node.path, " ")), nil)
	}

	for _, hook := range before {
		if err := hook(ctx, inv); err != nil {
			return prierrors.CommandFailed(node.path, "beforeAction", err)
		}
	}

	if err := action(ctx, inv); err != nil {
		return prierrors.CommandFailed(node.path, "action", err)
	}

	for _, hook := range after {
		if err := hook(ctx, inv); err != nil {
			return prierrors.CommandFailed(node.path, "afterAction", err)
		}
	}

	return nil
}

// Dispatch resolves argv, parses the node's options and runs it.
func (r *Registry) Dispatch(ctx context.Context, argv []string) error {
	node, rest := r.Resolve(argv)
	if node == nil {
		path := argv
		if len(path) > 1 {
			path = path[:1]
		}
		return prierrors.UnknownCommand(path)
	}

	inv, err := ParseInvocation(node, rest)
	if err != nil {
		return err
	}

	return r.Run(ctx, node, inv)
}

// Paths lists every registered command path, sorted.
func (r *Registry) Paths() []string {
	var paths []string
	r.Walk(func(n *Node) {
		if n.registered {
			paths = append(paths, strings.Join(n.path, " "))
		}
	})
	sort.Strings(paths)
	return paths
}

func validatePath(path []string) error {
	if len(path) == 0 {
		return prierrors.NewValidationError(prierrors.ErrCodeInvalidCommand, "command path is empty")
	}
	for _, segment := range path {
		if segment == "" || strings.HasPrefix(segment, "-") || strings.ContainsAny(segment, " \t\n") {
			return prierrors.NewValidationError(prierrors.ErrCodeInvalidCommand,
				fmt.Sprintf("invalid command segment %q", segment))
		}
	}
	return nil
}
