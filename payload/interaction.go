package payload

import "encoding/json"

// ResponseType is the kind of reply sent to an interaction.
type ResponseType int

const (
	ResponsePong                             ResponseType = 1
	ResponseChannelMessageWithSource         ResponseType = 4
	ResponseDeferredChannelMessageWithSource ResponseType = 5
	ResponseDeferredUpdateMessage            ResponseType = 6
	ResponseUpdateMessage                    ResponseType = 7
	ResponseAutocompleteResult               ResponseType = 8
	ResponseModal                            ResponseType = 9
)

func (t ResponseType) Valid() bool {
	switch t {
	case ResponsePong, ResponseChannelMessageWithSource, ResponseDeferredChannelMessageWithSource,
		ResponseDeferredUpdateMessage, ResponseUpdateMessage, ResponseAutocompleteResult, ResponseModal:
		return true
	}
	return false
}

// TextInput is the single component kind a modal can carry here.
type TextInput struct {
	CustomID  string `json:"custom_id"`
	Label     string `json:"label"`
	Style     int    `json:"style"`
	Required  bool   `json:"required,omitempty"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

type modalData struct {
	CustomID   string         `json:"custom_id"`
	Title      string         `json:"title"`
	Components []actionRowTxt `json:"components"`
}

type actionRowTxt struct {
	Type       int         `json:"type"`
	Components []textInput `json:"components"`
}

type textInput struct {
	Type int `json:"type"`
	TextInput
}

// InteractionResponse builds the callback body for an interaction.
type InteractionResponse struct {
	data struct {
		Type ResponseType `json:"type"`
		Data any          `json:"data,omitempty"`
	}
}

func NewInteractionResponse(t ResponseType) (*InteractionResponse, error) {
	if !t.Valid() {
		return nil, invalid("interaction response type", "unknown type %d", t)
	}
	r := &InteractionResponse{}
	r.data.Type = t
	return r, nil
}

func (r *InteractionResponse) Type() ResponseType { return r.data.Type }

// SetMessage attaches message data to a message-carrying response.
func (r *InteractionResponse) SetMessage(m *Message) error {
	switch r.data.Type {
	case ResponseChannelMessageWithSource, ResponseUpdateMessage, ResponseDeferredChannelMessageWithSource:
	default:
		return invalid("interaction response data", "type %d does not carry a message", r.data.Type)
	}
	r.data.Data = m
	return nil
}

// SetChoices attaches autocomplete suggestions.
func (r *InteractionResponse) SetChoices(choices []Choice) error {
	if r.data.Type != ResponseAutocompleteResult {
		return invalid("interaction response data", "choices need type %d", ResponseAutocompleteResult)
	}
	if err := checkCount("autocomplete choices", len(choices), maxChoices); err != nil {
		return err
	}
	for _, ch := range choices {
		if err := checkLen("choice name", ch.Name, 1, 100); err != nil {
			return err
		}
	}
	r.data.Data = map[string]any{"choices": append([]Choice{}, choices...)}
	return nil
}

// SetModal attaches a modal with one text input per row.
func (r *InteractionResponse) SetModal(customID, title string, inputs ...TextInput) error {
	if r.data.Type != ResponseModal {
		return invalid("interaction response data", "modal needs type %d", ResponseModal)
	}
	if err := checkLen("modal custom id", customID, 1, 100); err != nil {
		return err
	}
	if err := checkLen("modal title", title, 1, 45); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return invalid("modal components", "at least one text input required")
	}
	if err := checkCount("modal components", len(inputs), 5); err != nil {
		return err
	}
	md := modalData{CustomID: customID, Title: title}
	for _, in := range inputs {
		if err := checkLen("text input label", in.Label, 1, 45); err != nil {
			return err
		}
		md.Components = append(md.Components, actionRowTxt{
			Type:       1,
			Components: []textInput{{Type: 4, TextInput: in}},
		})
	}
	r.data.Data = md
	return nil
}

func (r *InteractionResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.data) }
