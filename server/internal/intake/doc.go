// Package intake watches an inbox directory for FNOL files.
//
// Every *.json file that appears in the inbox is parsed as a claim, run
// through the receiver and moved out of the way:
//
//	<dir>/processed/<name>              the original file
//	<dir>/processed/<name>.result.json  the stored decision
//	<dir>/failed/<name>                 files that did not parse or process
//	<dir>/failed/<name>.error.txt       the reason
//
// Writes are debounced per file so a claim copied in several chunks is
// read once, after the last write. Files already present when the watcher
// starts are processed first.
package intake
