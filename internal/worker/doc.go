// Package worker implements the parser side of the supervisor protocol:
// a request loop that reads parse requests from stdin, runs them through a
// Backend, and writes replies to stdout. It runs inside the isolated
// specimport-worker process, never in the supervising one.
package worker
