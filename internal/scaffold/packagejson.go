package scaffold

import (
	"context"
	"strings"

	"github.com/conneroisu/pri/internal/ensure"
	"github.com/conneroisu/pri/internal/project"
)

var dependencyKeys = []string{"dependencies", "devDependencies", "peerDependencies"}

// packageJSON normalizes dependencies for the project type and merges the
// pri scripts into package.json.
func packageJSON(typ project.Type, version string) ensure.Transform {
	patch := map[string]interface{}{
		"scripts": map[string]interface{}{
			"start":   "pri dev",
			"docs":    "pri docs",
			"build":   "pri build",
			"bundle":  "pri bundle",
			"preview": "pri preview",
			"analyse": "pri analyse",
			"test":    "pri test",
			"format":  "tslint --fix './src/**/*.?(ts|tsx)' && prettier --write './src/**/*.?(ts|tsx)'",
		},
		"pri": map[string]interface{}{"type": string(typ), "version": version},
		"husky": map[string]interface{}{
			"hooks": map[string]interface{}{"pre-commit": "npm test"},
		},
	}
	merge := ensure.MergeJSON(patch)

	return func(ctx context.Context, prev string) (string, error) {
		pkg, err := ensure.DecodeJSONObject(prev)
		if err != nil {
			return "", err
		}

		for _, key := range dependencyKeys {
			deps := section(pkg, key, false)
			if deps == nil {
				continue
			}
			for name := range deps {
				pinned, shipped := Dependencies[name]
				switch {
				case !shipped:
				case typ == project.TypeProject:
					delete(deps, name)
				default:
					deps[name] = pinned
				}
			}
		}

		if typ == project.TypePlugin {
			movePluginDependencies(pkg, "devDependencies", "dependencies")
			movePluginDependencies(pkg, "peerDependencies", "dependencies")
		} else {
			movePluginDependencies(pkg, "dependencies", "devDependencies")
			movePluginDependencies(pkg, "peerDependencies", "devDependencies")
		}

		out, err := ensure.EncodeJSON(pkg)
		if err != nil {
			return "", err
		}
		return merge(ctx, out)
	}
}

// pinPri moves the pri dependency from one section to another, keeping the
// version the project already pins.
func pinPri(from, to, version string) ensure.Transform {
	return func(_ context.Context, prev string) (string, error) {
		pkg, err := ensure.DecodeJSONObject(prev)
		if err != nil {
			return "", err
		}

		pinned := version
		for _, key := range []string{"devDependencies", "dependencies"} {
			if v, ok := section(pkg, key, false)[PriPackageName].(string); ok && v != "" {
				pinned = v
				break
			}
		}

		if deps := section(pkg, from, false); deps != nil {
			delete(deps, PriPackageName)
		}
		section(pkg, to, true)[PriPackageName] = pinned

		return ensure.EncodeJSON(pkg)
	}
}

func movePluginDependencies(pkg map[string]interface{}, from, to string) {
	source := section(pkg, from, true)
	target := section(pkg, to, true)

	for name, v := range source {
		if isPluginDependency(name) {
			target[name] = v
			delete(source, name)
		}
	}
}

func isPluginDependency(name string) bool {
	if strings.HasPrefix(name, "@") {
		if i := strings.Index(name, "/"); i > 0 {
			name = name[i+1:]
		}
	}
	return strings.HasPrefix(name, "pri-plugin")
}

// section returns pkg[key] as an object, creating it when create is set.
func section(pkg map[string]interface{}, key string, create bool) map[string]interface{} {
	if m, ok := pkg[key].(map[string]interface{}); ok {
		return m
	}
	if !create {
		return nil
	}
	m := make(map[string]interface{})
	pkg[key] = m
	return m
}
