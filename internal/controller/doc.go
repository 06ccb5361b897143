// Package controller implements the shared backend behind the client and
// engine listener services: the engine registry, the task queue, and the
// persistent task result archive. Both listeners operate on a single
// Controller instance so that clients and engines observe one consistent
// view of the cluster.
package controller
