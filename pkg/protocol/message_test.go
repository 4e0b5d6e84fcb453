package protocol_test

import (
	"testing"

	"github.com/aretw0/botlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
)

func TestType_String(t *testing.T) {
	assert.Equal(t, "StartProgram", protocol.StartProgram.String())
	assert.Equal(t, "Type(42)", protocol.Type(42).String())
	assert.True(t, protocol.Forbidden.Known())
	assert.False(t, protocol.Type(42).Known())
	assert.False(t, protocol.Unknown.Known())
}

func TestType_StableCodes(t *testing.T) {
	codes := map[protocol.Type]int{
		protocol.Authenticate:            1,
		protocol.Authenticated:           2,
		protocol.RequestRobot:            11,
		protocol.RobotAllocated:          12,
		protocol.NoRobotAvailable:        13,
		protocol.TransferProgram:         20,
		protocol.ProgramTransferred:      21,
		protocol.DownloadProgram:         22,
		protocol.ProgramDownloaded:       23,
		protocol.UnableToDownloadProgram: 24,
		protocol.StartProgram:            101,
		protocol.ProgramStarted:          102,
		protocol.ProgramFinished:         103,
		protocol.StopProgram:             201,
		protocol.ProgramStopped:          202,
		protocol.RobotStateUpdate:        501,
		protocol.RobotDebugMessage:       502,
		protocol.RobotError:              503,
		protocol.Error:                   1000,
		protocol.NotAuthenticated:        1001,
		protocol.Forbidden:               1002,
	}
	for typ, code := range codes {
		assert.Equal(t, code, int(typ), typ.String())
	}
}

func TestMessage_WithAndString(t *testing.T) {
	m := protocol.New(protocol.RobotStateUpdate, 3).With("state", "Waiting").With("a", "1")

	assert.Equal(t, "Waiting", m.Value("state"))
	assert.Equal(t, "", m.Value("missing"))
	assert.Equal(t, `RobotStateUpdate#3{a="1",state="Waiting"}`, m.String())

	var zero protocol.Message
	zero = zero.With("k", "v")
	assert.Equal(t, "v", zero.Value("k"))
}
