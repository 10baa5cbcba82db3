package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	prierrors "github.com/conneroisu/pri/internal/errors"
)

// Invocation carries the parsed options and positional arguments of one
// command execution to every hook.
type Invocation struct {
	Path   []string
	Args   []string
	values map[string]string
	set    map[string]bool
}

// NewInvocation creates an invocation with no option values.
func NewInvocation(path, args []string) *Invocation {
	return &Invocation{
		Path:   append([]string(nil), path...),
		Args:   append([]string(nil), args...),
		values: make(map[string]string),
		set:    make(map[string]bool),
	}
}

// Set stores an option value as given on the command line.
func (i *Invocation) Set(name, value string) {
	i.values[name] = value
	i.set[name] = true
}

// setDefault stores a value without marking it as explicitly given.
func (i *Invocation) setDefault(name, value string) {
	if _, ok := i.values[name]; !ok {
		i.values[name] = value
	}
}

// Changed reports whether the option was given explicitly.
func (i *Invocation) Changed(name string) bool {
	return i.set[name]
}

// String returns the option value or "".
func (i *Invocation) String(name string) string {
	return i.values[name]
}

// Bool returns the option value parsed as a boolean.
func (i *Invocation) Bool(name string) bool {
	v, err := strconv.ParseBool(i.values[name])
	return err == nil && v
}

// Arg returns the positional argument at idx or "".
func (i *Invocation) Arg(idx int) string {
	if idx < 0 || idx >= len(i.Args) {
		return ""
	}
	return i.Args[idx]
}

// Values returns a copy of every option value, given or defaulted.
func (i *Invocation) Values() map[string]string {
	out := make(map[string]string, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// ParseInvocation parses tokens against the node's option schema.
func ParseInvocation(node *Node, tokens []string) (*Invocation, error) {
	fs := pflag.NewFlagSet(strings.Join(node.path, " "), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindOptions(fs, node.Options)

	if err := fs.Parse(tokens); err != nil {
		return nil, prierrors.NewCommandError(prierrors.ErrCodeInvalidCommand,
			fmt.Sprintf("invalid arguments for %q", strings.Join(node.path, " ")), err)
	}

	return invocationFromFlags(node, fs, fs.Args())
}

func bindOptions(fs *pflag.FlagSet, options []Option) {
	for _, opt := range options {
		switch opt.Kind {
		case KindBool:
			def, _ := strconv.ParseBool(opt.Default)
			fs.BoolP(opt.Name, opt.Alias, def, opt.Description)
		default:
			fs.StringP(opt.Name, opt.Alias, opt.Default, opt.Description)
		}
	}
}

func invocationFromFlags(node *Node, fs *pflag.FlagSet, args []string) (*Invocation, error) {
	inv := NewInvocation(node.path, args)

	var missing []string
	for _, opt := range node.Options {
		flag := fs.Lookup(opt.Name)
		if flag == nil {
			continue
		}
		if flag.Changed {
			inv.Set(opt.Name, flag.Value.String())
			continue
		}
		if opt.Required {
			missing = append(missing, "--"+opt.Name)
			continue
		}
		inv.setDefault(opt.Name, flag.Value.String())
	}

	if len(missing) > 0 {
		return nil, prierrors.NewCommandError(prierrors.ErrCodeInvalidCommand,
			fmt.Sprintf("required flag(s) %s not set", strings.Join(missing, ", ")), nil)
	}

	return inv, nil
}
