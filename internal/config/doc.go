// Package config defines the daemon and control client settings and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the control address, the input device, the
// one-shot behavior instances and the layered keymap. Watcher reloads the
// file when it changes on disk.
package config
