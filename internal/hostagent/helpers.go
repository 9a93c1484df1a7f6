package hostagent

import (
	"encoding/json"

	"github.com/deskagent/deskagent/internal/agentfactory"
	"github.com/deskagent/deskagent/internal/coretypes"
)

// encodeMessages/decodeMessages serialize the conversation history for
// Checkpoint.Messages, which every TaskStore backend stores as an opaque
// JSON blob.
func encodeMessages(msgs []coretypes.Message) ([]byte, error) {
	return json.Marshal(msgs)
}

func decodeMessages(raw []byte) ([]coretypes.Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var msgs []coretypes.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// agentWindowInfo probes class/title for hwnd so a resumed AppAgent can be
// reclassified the same way a freshly discovered window would be.
func agentWindowInfo(probe WindowProbe, hwnd int64) agentfactory.WindowInfo {
	if probe == nil {
		return agentfactory.WindowInfo{}
	}
	return agentfactory.WindowInfo{
		Class: probe.WindowClass(hwnd),
		Title: probe.WindowTitle(hwnd),
	}
}
