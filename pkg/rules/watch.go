package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// LoadBundle reads a JSON-encoded rule bundle from path: an array of
// domain.Rule. Invalid rules are rejected individually so one malformed
// rule in a large bundle doesn't block loading the rest.
func LoadBundle(path string) ([]*domain.Rule, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read rule bundle: %w", err)}
	}

	var raw []domain.Rule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []error{fmt.Errorf("failed to parse rule bundle: %w", err)}
	}

	var rules []*domain.Rule
	var errs []error
	for i := range raw {
		r := raw[i]
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, r.Name, err))
			continue
		}
		rules = append(rules, &r)
	}
	return rules, errs
}

// WatchBundle invokes onChange every time the rule bundle file at path is
// written, the same fsnotify wiring internal/config.Watch uses for the
// service's own configuration — so rule edits land without a process
// restart. The returned func stops the watch.
func WatchBundle(path string, onChange func([]*domain.Rule, []error)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule bundle watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch rule bundle file: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				rules, errs := LoadBundle(path)
				onChange(rules, errs)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Close, nil
}
