// Package main hosts the srtfix CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into calls on the repair
// engine: batch repair of files and directories, encoding detection, mapping
// table inspection, the repair history journal, the HTTP surface, and the
// inbox watcher. Configuration resolution, flag overrides, and logger setup
// live in commandContext so subcommands only describe their own behavior.
//
// New functionality belongs in the internal packages first; commands here
// should stay thin and declarative.
package main
