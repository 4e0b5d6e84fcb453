/*
Package ports defines the driven ports (interfaces) of the robot client.

These interfaces decouple the interpreter and the session state machine from the concrete
transport, storage and hardware implementations.

# Key Interfaces

  - Actuator: the physical robot layer the interpreter drives (speech, motion, indicators, sensors).
  - Dialer / Conn: a duplex message connection to the coordination server.
  - ProgramStore: persists the last prepared program so it survives a restart.
*/
package ports
