// Package web serves the repair engine over HTTP.
//
// Routes:
//
//	GET  /healthz            liveness probe
//	GET  /api/mapping        active mapping table, duplicates, and conflicts
//	POST /api/repair         multipart "file" parts -> zip of repaired files
//	POST /api/repair/text    one multipart "file" part -> repaired UTF-8 text
//	GET  /api/history        recent runs (when the journal is enabled)
//	GET  /api/history/{id}   one run and its files
//
// Uploads are repaired in memory and never touch disk.
package web
