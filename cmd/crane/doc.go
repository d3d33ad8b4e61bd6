// Command crane is a terminal client for local container runtimes.
//
// Without a subcommand it opens the interactive dashboard. The subcommands
// cover the same operations for scripts:
//
//	crane ps
//	crane logs ID [-n N] [--stream I] [-o FILE [--gzip]]
//	crane logs --self
//	crane start|stop|rm ID...
//	crane create IMAGE [ARGS...] [--name N] [--cpus N] [--memory M] [-p H:C] [--network NET] [--rm]
//	crane networks
package main
