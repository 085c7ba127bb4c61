package launch

import (
	"context"

	"github.com/kdwarn/plumgo/process"
)

// SubscribeControl registers an RPC handler at p.PID().String() on
// communicator that interprets incoming wire-encoded ControlMessage
// bodies as play/pause/kill/status requests against p. It is called
// automatically by Launcher for every process it launches or continues;
// callers driving a process outside a Launcher (tests, a standalone
// worker) can call it directly. codec selects the wire codec the
// handler decodes requests and encodes replies with; omit it (or pass
// nil) to use JSONCodec.
func SubscribeControl(p *process.Process, communicator process.Communicator, codec ...Codec) process.SubscriptionID {
	if communicator == nil {
		return ""
	}
	c := JSONCodec
	if len(codec) > 0 && codec[0] != nil {
		c = codec[0]
	}
	return communicator.AddRPCSubscriber(p.PID().String(), func(ctx context.Context, body any) (any, error) {
		env, ok := body.(*envelope)
		if !ok {
			return nil, &process.TaskRejectedError{Task: "control", Reason: "body is not a wire envelope"}
		}
		var msg ControlMessage
		if err := decode(env, &msg); err != nil {
			return nil, err
		}

		var reply any
		switch msg.Intent {
		case IntentPlay:
			reply = p.Play()
		case IntentPause:
			reply = p.Pause(msg.Message)
		case IntentKill:
			reply = p.Kill(msg.Message)
		case IntentStatus:
			reply = &StatusReply{
				Label:  string(p.Label()),
				Status: p.Status(),
				Paused: p.Paused(),
			}
		default:
			return nil, &process.TaskRejectedError{Task: "control", Reason: "unrecognized intent"}
		}
		return encode(c, reply)
	})
}
