/*
Package session implements the robot side of the coordination protocol.

A Client authenticates against one of the configured servers, keeps a persistent
connection open, downloads programs on request and runs them on a worker goroutine
so that StopProgram stays deliverable while a program is mid-flight. Transport loss
triggers a reconnect with exponential backoff capped at one minute; Close is the only
way to stop the client for good.
*/
package session
