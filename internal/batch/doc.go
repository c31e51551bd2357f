// Package batch turns command-line arguments and uploads into repair work.
//
// Collect expands files and directories into an ordered, de-duplicated input
// list. Runner repairs inputs concurrently with a bounded worker count and
// returns outcomes in input order; one failing file never stops the others.
// WriteFiles and WriteArchive persist the successful outcomes as UTF-8.
package batch
