// Package cmd provides the command-line interface for pri.
//
// The root command is built in two passes. Global flags are read first so
// the project context, logger and plugin host can be created; the loaded
// plugins then register their commands, which are compiled onto the cobra
// tree before the real parse runs.
//
// # Built-in Commands
//
//   - init: Initialize a project, component, plugin or cli
//   - dev: Start the dev server, dashboard and watcher
//   - build: Build for production
//   - bundle: Bundle a component as UMD
//   - publish: Version, tag, push and publish to npm
//   - test: Run the jest test suite with coverage
//   - packages push: Commit and push a linked package
//   - plugins list: Show loaded plugins
//   - version: Show version information
//
// # Configuration
//
// Project settings live in pri.json and may be overridden with PRI_
// environment variables (PRI_DISTDIR=out). The global flags can also be set
// from the environment:
//
//	PRI_CONFIG_FILE=./configs/pri.prod.json pri build
//	PRI_LOG_LEVEL=debug pri dev
package cmd
