package builtin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/conneroisu/pri/internal/bundler"
	"github.com/conneroisu/pri/internal/entry"
	"github.com/conneroisu/pri/internal/events"
	"github.com/conneroisu/pri/internal/plugins"
)

// ServiceWorkerFile is written next to the development bundle and copied to
// dist by production builds.
const ServiceWorkerFile = ".temp/static/sw.js"

// PipeServiceWorker transforms the generated service worker script.
const PipeServiceWorker = "serviceWorker"

const defaultServiceWorker = `self.addEventListener('install', event => {
  self.skipWaiting();
});

self.addEventListener('activate', event => {
  self.clients.claim();
});
`

func registerServiceWorker(_ context.Context, api *plugins.API, _ Options) error {
	api.Events.On(events.CreateEntry, func(ctx context.Context, args ...interface{}) {
		if !api.Project.Config().UseServiceWorker || len(args) < 2 {
			return
		}
		e, ok := args[1].(*entry.Entry)
		if !ok {
			return
		}

		e.PipeEntryRender(func(_ context.Context, render string) (string, error) {
			return serviceWorkerRegistration(api.Project.Config().BaseHref) + render, nil
		})

		if err := writeServiceWorker(ctx, api, e); err != nil {
			api.Logger.Error(ctx, err, "Failed to write service worker")
		}
	})
	return nil
}

func serviceWorkerRegistration(baseHref string) string {
	scope := bundler.EnsureStartWithSlash(bundler.EnsureEndWithSlash(baseHref))
	return fmt.Sprintf("if (navigator.serviceWorker) {\n  navigator.serviceWorker.register('/sw.js', {scope: %q})\n}\n\n", scope)
}

func writeServiceWorker(ctx context.Context, api *plugins.API, e *entry.Entry) error {
	content, err := e.Pipes.Get(ctx, PipeServiceWorker, defaultServiceWorker)
	if err != nil {
		return err
	}

	fs := api.Project.Fs()
	dst := api.Project.Path(filepath.FromSlash(ServiceWorkerFile))
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, dst, []byte(content), 0o644)
}
