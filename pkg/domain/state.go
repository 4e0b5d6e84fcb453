package domain

// RobotState is the lifecycle state announced to the server.
type RobotState string

const (
	StateDisconnected   RobotState = "Disconnected"
	StateConnecting     RobotState = "Connecting"
	StateAuthenticating RobotState = "Authenticating"
	StateWaiting        RobotState = "Waiting"     // Idle, ready for a download
	StateDownloading    RobotState = "Downloading" // Fetching a program
	StatePrepared       RobotState = "Prepared"    // Program stored, ready to start
	StateInitialising   RobotState = "Initialising"
	StateRunning        RobotState = "Running"
	StateCancelling     RobotState = "Cancelling"
	StateClosed         RobotState = "Closed" // Terminal
)

func (s RobotState) String() string {
	return string(s)
}

// Outcome is how a program run ended.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeStopped  Outcome = "stopped"
	OutcomeRejected Outcome = "rejected"
)
