/*
Package observability exposes Prometheus metrics for the robot client.

Metrics live on a private registry so several clients can share a process. Hooks
connects them to the interpreter and SessionHooks to the protocol session.
*/
package observability
