// Package cli implements staffctl, the command-line surface of the
// reconciliation engine.
//
// Commands are grouped by concern:
//
//	db migrate
//	auth login|verify
//	categories list|save|delete|usage|migrate
//	roles verify|sync|sync-all|invalidate
//	import preview|apply
//
// Configuration is layered as defaults, then the JSON file named by -c, then
// flags. Results are printed to stdout as JSON; logs go to stderr. ExitCode
// maps the error taxonomy to process exit codes.
package cli
