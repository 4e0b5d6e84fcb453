package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedMessage is returned when an inbound message cannot be decoded.
var ErrMalformedMessage = errors.New("malformed message")

// Type is the numeric message type code.
type Type int

const (
	Unknown                 Type = 0
	Authenticate            Type = 1
	Authenticated           Type = 2
	RequestRobot            Type = 11
	RobotAllocated          Type = 12
	NoRobotAvailable        Type = 13
	TransferProgram         Type = 20
	ProgramTransferred      Type = 21
	DownloadProgram         Type = 22
	ProgramDownloaded       Type = 23
	UnableToDownloadProgram Type = 24
	StartProgram            Type = 101
	ProgramStarted          Type = 102
	ProgramFinished         Type = 103
	StopProgram             Type = 201
	ProgramStopped          Type = 202
	RobotStateUpdate        Type = 501
	RobotDebugMessage       Type = 502
	RobotError              Type = 503
	Error                   Type = 1000
	NotAuthenticated        Type = 1001
	Forbidden               Type = 1002
	StartMonitoring         Type = 1100
	StopMonitoring          Type = 1101
	ClientAdded             Type = 1102
	ClientRemoved           Type = 1103
	AlertsRequest           Type = 1200
	AlertBroadcast          Type = 1201
	StepStarted             Type = 1500
	StepFinished            Type = 1501
	StepErrored             Type = 1502
)

var typeNames = map[Type]string{
	Unknown:                 "Unknown",
	Authenticate:            "Authenticate",
	Authenticated:           "Authenticated",
	RequestRobot:            "RequestRobot",
	RobotAllocated:          "RobotAllocated",
	NoRobotAvailable:        "NoRobotAvailable",
	TransferProgram:         "TransferProgram",
	ProgramTransferred:      "ProgramTransferred",
	DownloadProgram:         "DownloadProgram",
	ProgramDownloaded:       "ProgramDownloaded",
	UnableToDownloadProgram: "UnableToDownloadProgram",
	StartProgram:            "StartProgram",
	ProgramStarted:          "ProgramStarted",
	ProgramFinished:         "ProgramFinished",
	StopProgram:             "StopProgram",
	ProgramStopped:          "ProgramStopped",
	RobotStateUpdate:        "RobotStateUpdate",
	RobotDebugMessage:       "RobotDebugMessage",
	RobotError:              "RobotError",
	Error:                   "Error",
	NotAuthenticated:        "NotAuthenticated",
	Forbidden:               "Forbidden",
	StartMonitoring:         "StartMonitoring",
	StopMonitoring:          "StopMonitoring",
	ClientAdded:             "ClientAdded",
	ClientRemoved:           "ClientRemoved",
	AlertsRequest:           "AlertsRequest",
	AlertBroadcast:          "AlertBroadcast",
	StepStarted:             "StepStarted",
	StepFinished:            "StepFinished",
	StepErrored:             "StepErrored",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Known reports whether the code is part of the protocol.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok && t != Unknown
}

// Message is one protocol message.
type Message struct {
	Type           Type              `json:"type"`
	ConversationID int64             `json:"conversationId"`
	Values         map[string]string `json:"values"`
}

// New creates a message with an initialised value map.
func New(t Type, conversationID int64) Message {
	return Message{Type: t, ConversationID: conversationID, Values: map[string]string{}}
}

// With returns the message with key set to value.
func (m Message) With(key, value string) Message {
	if m.Values == nil {
		m.Values = map[string]string{}
	}
	m.Values[key] = value
	return m
}

// Value returns the value stored under key, or "" when absent.
func (m Message) Value(key string) string {
	return m.Values[key]
}

// String renders the message for logs with keys in sorted order.
func (m Message) String() string {
	keys := make([]string, 0, len(m.Values))
	for k := range m.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s#%d{", m.Type, m.ConversationID)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, m.Values[k])
	}
	b.WriteByte('}')
	return b.String()
}
