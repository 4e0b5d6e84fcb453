package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aretw0/botlink/internal/runtime"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/protocol"
)

func (c *Client) handle(ctx context.Context, msg protocol.Message) {
	// Replies correlate with the most recent inbound message, whatever its type
	c.beginConversation(msg.ConversationID)

	switch msg.Type {
	case protocol.Authenticated:
		c.authenticated(ctx, msg)
	case protocol.DownloadProgram:
		c.download(ctx, msg)
	case protocol.TransferProgram:
		c.transfer(ctx, msg)
	case protocol.StartProgram:
		c.start(ctx, msg)
	case protocol.StopProgram:
		c.stop(ctx, msg)
	case protocol.Error, protocol.NotAuthenticated, protocol.Forbidden:
		c.logger.Warn("Server reported a problem", "type", msg.Type, "values", msg.Values)
	default:
		c.logger.Debug("Ignoring message", "type", msg.Type)
	}
}

func (c *Client) authenticated(ctx context.Context, msg protocol.Message) {
	c.logger.Info("Authenticated")

	if c.settle > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.settle):
		}
	}
	c.announce(ctx, domain.StateWaiting)
	c.endConversation()
}

// busy rejects a request that needs the robot idle. It reports whether it did.
func (c *Client) busy(ctx context.Context, msg protocol.Message) bool {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		c.reject(ctx, msg)
	}
	return running
}

// reject answers msg with Forbidden in its own conversation.
func (c *Client) reject(ctx context.Context, msg protocol.Message) {
	c.logger.Warn("Rejecting request while a program runs", "type", msg.Type)
	reply := protocol.New(protocol.Forbidden, msg.ConversationID).With("error", domain.ErrProgramRunning.Error())
	if err := c.write(ctx, reply); err != nil {
		c.logger.Debug("Rejection not delivered", "error", err)
	}
}

func (c *Client) download(ctx context.Context, msg protocol.Message) {
	if c.busy(ctx, msg) {
		return
	}
	c.announce(ctx, domain.StateDownloading)

	c.mu.Lock()
	client, token := c.api, c.token
	c.mu.Unlock()

	user, name := msg.Value("user"), msg.Value("program")
	program, err := client.FetchProgram(ctx, token, user, name)
	if err != nil {
		c.logger.Warn("Unable to download program", "user", user, "program", name, "error", err)
		if serr := c.send(ctx, protocol.UnableToDownloadProgram, "error", err.Error()); serr != nil {
			c.logger.Debug("Download failure not delivered", "error", serr)
		}
		c.announce(ctx, domain.StateWaiting)
		c.endConversation()
		return
	}

	// The previous program stays prepared unless the server heard about the new one
	if err := c.send(ctx, protocol.ProgramDownloaded); err != nil {
		c.logger.Warn("Discarding downloaded program", "error", err)
		return
	}
	c.commit(ctx, program)
	c.logger.Info("Program downloaded", "user", user, "program", name, "statements", program.Len())
	c.announce(ctx, domain.StatePrepared)
}

func (c *Client) transfer(ctx context.Context, msg protocol.Message) {
	if c.busy(ctx, msg) {
		return
	}

	program, err := ast.DecodeProgram([]byte(msg.Value("program")))
	if err != nil {
		c.logger.Warn("Unable to read transferred program", "error", err)
		if serr := c.send(ctx, protocol.RobotError, "message", err.Error()); serr != nil {
			c.logger.Debug("Transfer failure not delivered", "error", serr)
		}
		c.announce(ctx, domain.StateWaiting)
		c.endConversation()
		return
	}

	if err := c.send(ctx, protocol.ProgramTransferred); err != nil {
		c.logger.Warn("Discarding transferred program", "error", err)
		return
	}
	c.commit(ctx, program)
	c.announce(ctx, domain.StatePrepared)
}

func (c *Client) start(ctx context.Context, msg protocol.Message) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.reject(ctx, msg)
		c.outcome(domain.OutcomeRejected)
		return
	}
	program := c.program
	c.conversation = msg.ConversationID
	if program != nil {
		c.running = true
	}
	c.mu.Unlock()

	if program == nil {
		c.logger.Warn("Start requested without a program")
		if err := c.send(ctx, protocol.RobotError, "message", domain.ErrNoProgram.Error()); err != nil {
			c.logger.Debug("Start failure not delivered", "error", err)
		}
		c.outcome(domain.OutcomeRejected)
		c.announce(ctx, domain.StateWaiting)
		c.endConversation()
		return
	}

	c.announce(ctx, domain.StateInitialising)

	// Configured here, not on the worker, so a StopProgram that follows cannot be lost.
	// Variables, functions and triggers survive until the program calls reset.
	settings := c.engine.Configure(parseOptions(msg.Value("opts")))
	c.logger.Info("Starting program", "statements", program.Len(), "debug", settings.Debug, "delay", settings.Delay)

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.execute(ctx, program)
	}()
}

// execute runs on the worker goroutine.
func (c *Client) execute(ctx context.Context, program *ast.Program) {
	if err := c.send(ctx, protocol.ProgramStarted); err != nil {
		c.logger.Debug("Start not delivered", "error", err)
	}
	c.announce(ctx, domain.StateRunning)

	err := c.engine.Run(ctx, program)

	result, outcome := protocol.ProgramFinished, domain.OutcomeFinished
	if err != nil || c.engine.Cancelled() {
		result, outcome = protocol.ProgramStopped, domain.OutcomeStopped
	}
	c.logger.Info("Program ended", "outcome", outcome)

	if err := c.send(ctx, result); err != nil {
		c.logger.Debug("Program result not delivered", "error", err)
	}

	// Still running until Waiting is out and the conversation is closed
	c.outcome(outcome)
	c.announce(ctx, domain.StateWaiting)

	c.mu.Lock()
	c.conversation = 0
	c.running = false
	c.mu.Unlock()
}

func (c *Client) stop(ctx context.Context, msg protocol.Message) {
	c.mu.Lock()
	if !c.running {
		c.conversation = 0
		c.mu.Unlock()
		c.logger.Debug("Nothing to stop")
		return
	}
	c.conversation = msg.ConversationID
	c.mu.Unlock()

	c.announce(ctx, domain.StateCancelling)
	c.engine.Cancel()
}

func (c *Client) outcome(o domain.Outcome) {
	for _, h := range c.hooks {
		if h.OnOutcome != nil {
			h.OnOutcome(o)
		}
	}
}

// parseOptions reads the JSON run options. Anything unreadable means defaults.
func parseOptions(raw string) map[string]any {
	opts := map[string]any{}
	if raw == "" {
		return opts
	}
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return map[string]any{}
	}
	return opts
}

// engineHooks forward interpreter events to the server.
func (c *Client) engineHooks() domain.Hooks {
	debug := func(ctx context.Context, evt *domain.FunctionEvent) {
		if evt.SourceID == "" {
			return
		}
		err := c.send(ctx, protocol.RobotDebugMessage,
			"sourceID", evt.SourceID,
			"status", string(evt.Status),
			"function", evt.Function)
		if err != nil {
			c.logger.Debug("Debug message not delivered", "error", err)
		}
	}

	return domain.Hooks{
		OnFunctionStart: debug,
		OnFunctionEnd:   debug,
		OnError: func(ctx context.Context, evt *domain.ErrorEvent) {
			if err := c.send(ctx, protocol.RobotError, "message", evt.Message()); err != nil {
				c.logger.Debug("Error not delivered", "error", err)
			}
		},
		OnStateChange: func(ctx context.Context, evt *domain.StateChangeEvent) {
			err := c.send(ctx, protocol.RobotStateUpdate, "name", evt.Name, "value", runtime.FormatValue(evt.Value))
			if err != nil {
				c.logger.Debug("State update not delivered", "error", err)
			}
		},
	}
}
