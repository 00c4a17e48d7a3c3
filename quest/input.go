package quest

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// Input is the raw completion input submitted by the caller. Text carries
// text/dropdown answers; Data carries the structured output of a sub-flow.
type Input struct {
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func hasData(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Payload validates in against the input kind and returns the ledger payload.
// Checkbox and flow quests carry no payload; extra input is ignored.
func (k InputKind) Payload(in Input) (datatypes.JSON, error) {
	switch k {
	case InputText, InputDropdown:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, ErrInputMissing
		}
		b, err := json.Marshal(text)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(b), nil
	case InputConversationLog, InputMilestone, InputFlowCompass, InputGroan:
		if !hasData(in.Data) {
			return nil, ErrInputMissing
		}
		return datatypes.JSON(bytes.TrimSpace(in.Data)), nil
	case InputCheckbox, InputFlow:
		return nil, nil
	}
	return nil, ErrInputMissing
}
