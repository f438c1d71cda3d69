package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadFrame is returned by DecodeFrame for malformed or incomplete
// frames, so stream consumers can match decode failures as a class.
var ErrBadFrame = errors.New("bad frame")

// Frame kinds carried on the update stream.
const (
	FrameKindTask         = "task"
	FrameKindMessage      = "message"
	FrameKindStatusUpdate = "status_update"
)

// Frame is one unit of streamed or snapshot-fetched task data: a full task
// snapshot, a single committed message, or a status update that may carry a
// provisional message while the remote side is still working.
type Frame struct {
	Kind    string   `json:"kind"`
	Task    *Task    `json:"task,omitempty"`
	Message *Message `json:"message,omitempty"`
	Status  *Status  `json:"status,omitempty"`
}

type Status struct {
	TaskID  string    `json:"task_id,omitempty"`
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

func SnapshotFrame(task Task) Frame {
	return Frame{Kind: FrameKindTask, Task: &task}
}

func MessageFrame(msg Message) Frame {
	return Frame{Kind: FrameKindMessage, Message: &msg}
}

func StatusFrame(taskID string, state TaskState, msg *Message) Frame {
	return Frame{Kind: FrameKindStatusUpdate, Status: &Status{TaskID: taskID, State: state, Message: msg}}
}

// DecodeFrame parses one wire frame and checks that the payload matching the
// declared kind is present.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	switch frame.Kind {
	case FrameKindTask:
		if frame.Task == nil {
			return Frame{}, fmt.Errorf("%w: task frame missing task", ErrBadFrame)
		}
	case FrameKindMessage:
		if frame.Message == nil {
			return Frame{}, fmt.Errorf("%w: message frame missing message", ErrBadFrame)
		}
	case FrameKindStatusUpdate:
		if frame.Status == nil {
			return Frame{}, fmt.Errorf("%w: status_update frame missing status", ErrBadFrame)
		}
	default:
		return Frame{}, fmt.Errorf("%w: unknown kind %q", ErrBadFrame, frame.Kind)
	}
	return frame, nil
}

func EncodeFrame(frame Frame) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
