// Package parser supervises the out-of-process spec parser. The supervisor
// owns at most one worker process at a time, enforces the hard parse timeout
// and the idle reclamation timeout, and contains worker crashes so they
// surface as failed calls rather than failures of the host process.
package parser
