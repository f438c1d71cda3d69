package eventlog

import (
	"fmt"
	"time"

	"github.com/flitsinc/taskbridge/internal/protocol"
)

type Kind string

const (
	KindInit           Kind = "init"
	KindStatus         Kind = "status"
	KindUserMessage    Kind = "user_message"
	KindAskedUser      Kind = "asked_user"
	KindSentToAgent    Kind = "sent_to_agent"
	KindAgentMessage   Kind = "agent_message"
	KindAgentDocument  Kind = "agent_document_added"
	KindReadAttachment Kind = "read_attachment"
	KindError          Kind = "error"
)

// Error codes recorded as events rather than raised.
const (
	CodeOracleError    = "oracle_error"
	CodeSendNotAllowed = "send_not_allowed"
	CodeAttachMissing  = "attach_missing"
	CodeTransport      = "transport_error"
)

// Event is one immutable record of something the engine observed or did.
// Only the fields relevant to the kind are set.
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	State protocol.TaskState `json:"state,omitempty"` // status

	Text        string   `json:"text,omitempty"`        // user_message, sent_to_agent, agent_message
	Attachments []string `json:"attachments,omitempty"` // sent_to_agent
	Question    string   `json:"question,omitempty"`    // asked_user

	Name string `json:"name,omitempty"` // agent_document_added, read_attachment
	Mime string `json:"mime,omitempty"` // agent_document_added

	OK        bool   `json:"ok,omitempty"`        // read_attachment
	Result    string `json:"result,omitempty"`    // read_attachment excerpt
	Truncated bool   `json:"truncated,omitempty"` // read_attachment
	Reason    string `json:"reason,omitempty"`    // read_attachment failure

	Code    string `json:"code,omitempty"`    // error
	Details string `json:"details,omitempty"` // error
}

func (e Event) String() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("status(%s)", e.State)
	case KindError:
		return fmt.Sprintf("error(%s)", e.Code)
	default:
		return string(e.Kind)
	}
}
