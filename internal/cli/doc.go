// Package cli implements the tessplot command line.
//
// Commands:
//
//	plot TIC [TIC...]   overlay the light curves of one or more targets and
//	                    render the figure once
//	inspect FILE        summarize a saved <target>Norm.fits series
//	history             list runs recorded in the journal
//	config              print the effective configuration
//	version             print build information
//
// Configuration is resolved in three steps: built-in defaults, then the file
// given with -c/--config (JSON or YAML), then flags set on the command line.
package cli
