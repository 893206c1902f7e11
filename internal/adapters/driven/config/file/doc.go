// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration with MEDGUARD_* environment overrides
//   - Watcher: reloads the ConfigStore when config.toml changes on disk
package file
