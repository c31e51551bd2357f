// Package watcher repairs subtitles dropped into an inbox directory.
//
// Watcher observes the inbox with fsnotify and hands each file to a handler
// once its size and modification time stop changing for the settle delay.
// Pipeline is the standard handler: it repairs the file, writes the result to
// the outbox, journals the outcome, and moves the original out of the inbox
// so the folder drains.
package watcher
