package httpadapter

import "encoding/json"

// Command is an inbound session frame, decoded once at the boundary.
// It is one of SendMessage, GetMessages or Unknown.
type Command interface {
	isCommand()
}

type SendMessage struct {
	Content string
}

type GetMessages struct{}

// Unknown is any frame that is not a recognised command. Err is set when the
// frame could not be decoded at all.
type Unknown struct {
	Type string
	Err  error
}

func (SendMessage) isCommand() {}
func (GetMessages) isCommand() {}
func (Unknown) isCommand()     {}

type commandFrame struct {
	Type    string  `json:"type"`
	Content *string `json:"content"`
}

// DecodeCommand never fails; anything it cannot use becomes Unknown.
func DecodeCommand(data []byte) Command {
	var f commandFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Unknown{Err: err}
	}

	switch f.Type {
	case "send_message":
		if f.Content == nil {
			return Unknown{Type: f.Type}
		}
		return SendMessage{Content: *f.Content}
	case "get_messages":
		return GetMessages{}
	default:
		return Unknown{Type: f.Type}
	}
}
