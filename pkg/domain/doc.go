/*
Package domain contains the core vocabulary shared by the interpreter and the session client.

It is kept free of I/O: transports, stores and the server API live behind pkg/ports.

# Key Entities

  - RobotState: the externally visible lifecycle of a robot (Waiting, Prepared, Running, ...).
  - Hooks: observer callbacks fired by the interpreter (function start/end, errors, state changes).
  - Errors: the sentinel error taxonomy (interpreter, session and storage failures).
*/
package domain
