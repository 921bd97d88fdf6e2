package spectrus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clk-66/spectrus-go/payload"
	"github.com/clk-66/spectrus-go/rest"
)

// InteractionType is the data.type of an INTERACTION_CREATE payload.
type InteractionType int

const (
	InteractionPing         InteractionType = 1
	InteractionCommand      InteractionType = 2
	InteractionComponent    InteractionType = 3
	InteractionAutocomplete InteractionType = 4
	InteractionModalSubmit  InteractionType = 5
)

func (t InteractionType) String() string {
	switch t {
	case InteractionPing:
		return "ping"
	case InteractionCommand:
		return "command"
	case InteractionComponent:
		return "component"
	case InteractionAutocomplete:
		return "autocomplete"
	case InteractionModalSubmit:
		return "modal_submit"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// InteractionData is the type-specific part of an interaction. It is one of
// *PingData, *CommandData, *ComponentData, *AutocompleteData,
// *ModalSubmitData or *UnknownInteractionData.
type InteractionData interface {
	interactionType() InteractionType
}

type PingData struct{}

// CommandData is the payload of a command invocation.
type CommandData struct {
	ID       string                     `json:"id"`
	Name     string                     `json:"name"`
	Type     payload.CommandType        `json:"type"`
	GuildID  string                     `json:"guild_id,omitempty"`
	TargetID string                     `json:"target_id,omitempty"`
	Options  []CommandInteractionOption `json:"options,omitempty"`
}

// Option finds a top-level option by name.
func (d *CommandData) Option(name string) (*CommandInteractionOption, bool) {
	for i := range d.Options {
		if d.Options[i].Name == name {
			return &d.Options[i], true
		}
	}
	return nil, false
}

// CommandInteractionOption is an option value as invoked. Sub-commands carry
// nested Options instead of a Value.
type CommandInteractionOption struct {
	Name    string                     `json:"name"`
	Type    payload.OptionType         `json:"type"`
	Value   json.RawMessage            `json:"value,omitempty"`
	Options []CommandInteractionOption `json:"options,omitempty"`
	Focused bool                       `json:"focused,omitempty"`
}

func (o *CommandInteractionOption) AsString() (string, bool) {
	var s string
	return s, json.Unmarshal(o.Value, &s) == nil
}

func (o *CommandInteractionOption) AsInt() (int64, bool) {
	var n int64
	return n, json.Unmarshal(o.Value, &n) == nil
}

func (o *CommandInteractionOption) AsFloat() (float64, bool) {
	var f float64
	return f, json.Unmarshal(o.Value, &f) == nil
}

func (o *CommandInteractionOption) AsBool() (bool, bool) {
	var b bool
	return b, json.Unmarshal(o.Value, &b) == nil
}

// ComponentData is the payload of a button or select interaction.
type ComponentData struct {
	CustomID      string   `json:"custom_id"`
	ComponentType int      `json:"component_type"`
	Values        []string `json:"values,omitempty"`
}

// AutocompleteData is a partially typed command invocation; one option is
// Focused.
type AutocompleteData struct {
	CommandData
}

// Focused returns the option being typed, searching sub-commands.
func (d *AutocompleteData) Focused() (*CommandInteractionOption, bool) {
	return focused(d.Options)
}

func focused(opts []CommandInteractionOption) (*CommandInteractionOption, bool) {
	for i := range opts {
		if opts[i].Focused {
			return &opts[i], true
		}
		if o, ok := focused(opts[i].Options); ok {
			return o, true
		}
	}
	return nil, false
}

// ModalSubmitData carries the values entered into a modal.
type ModalSubmitData struct {
	CustomID   string     `json:"custom_id"`
	Components []ModalRow `json:"components"`
}

type ModalRow struct {
	Type       int          `json:"type"`
	Components []ModalInput `json:"components"`
}

type ModalInput struct {
	Type     int    `json:"type"`
	CustomID string `json:"custom_id"`
	Value    string `json:"value"`
}

// Values maps each input's custom id to what was entered.
func (d *ModalSubmitData) Values() map[string]string {
	out := make(map[string]string)
	for _, row := range d.Components {
		for _, in := range row.Components {
			out[in.CustomID] = in.Value
		}
	}
	return out
}

// UnknownInteractionData keeps the raw data of an unrecognised interaction
// type.
type UnknownInteractionData struct {
	Type InteractionType
	Raw  json.RawMessage
}

func (*PingData) interactionType() InteractionType { return InteractionPing }

func (*CommandData) interactionType() InteractionType { return InteractionCommand }

func (*ComponentData) interactionType() InteractionType { return InteractionComponent }

func (*AutocompleteData) interactionType() InteractionType { return InteractionAutocomplete }

func (*ModalSubmitData) interactionType() InteractionType { return InteractionModalSubmit }

func (d *UnknownInteractionData) interactionType() InteractionType { return d.Type }

// Interaction is a user invoking a command, component or modal. Replies go
// through the interaction callback route using Token.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          InteractionType `json:"type"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Token         string          `json:"token"`
	Version       int             `json:"version"`
	Locale        string          `json:"locale,omitempty"`
	GuildLocale   string          `json:"guild_locale,omitempty"`
	Message       *Message        `json:"-"`
	RawData       json.RawMessage `json:"data,omitempty"`
	Data          InteractionData `json:"-"`

	client *Client
}

func (c *Client) newInteraction(raw json.RawMessage) (*Interaction, error) {
	i := &Interaction{client: c}
	if err := i.Refresh(raw); err != nil {
		return nil, err
	}
	return i, nil
}

// Refresh decodes raw and resolves Data from Type. An unknown type yields
// *UnknownInteractionData rather than an error.
func (i *Interaction) Refresh(raw json.RawMessage) error {
	if err := json.Unmarshal(raw, i); err != nil {
		return err
	}
	if i.Member != nil {
		i.Member.client = i.client
	}
	var msg struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	if len(msg.Message) > 0 && string(msg.Message) != "null" {
		m, err := i.client.newMessage(msg.Message)
		if err != nil {
			return fmt.Errorf("interaction message: %w", err)
		}
		i.Message = m
	}
	data, err := decodeInteractionData(i.Type, i.RawData)
	if err != nil {
		return fmt.Errorf("interaction %s data: %w", i.Type, err)
	}
	i.Data = data
	return nil
}

func decodeInteractionData(t InteractionType, raw json.RawMessage) (InteractionData, error) {
	var d InteractionData
	switch t {
	case InteractionPing:
		return &PingData{}, nil
	case InteractionCommand:
		d = &CommandData{}
	case InteractionComponent:
		d = &ComponentData{}
	case InteractionAutocomplete:
		d = &AutocompleteData{}
	case InteractionModalSubmit:
		d = &ModalSubmitData{}
	default:
		return &UnknownInteractionData{Type: t, Raw: raw}, nil
	}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Invoker is the user who triggered the interaction, in or out of the guild.
func (i *Interaction) Invoker() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (i *Interaction) CommandData() (*CommandData, bool) {
	d, ok := i.Data.(*CommandData)
	return d, ok
}

func (i *Interaction) ComponentData() (*ComponentData, bool) {
	d, ok := i.Data.(*ComponentData)
	return d, ok
}

func (i *Interaction) AutocompleteData() (*AutocompleteData, bool) {
	d, ok := i.Data.(*AutocompleteData)
	return d, ok
}

func (i *Interaction) ModalSubmitData() (*ModalSubmitData, bool) {
	d, ok := i.Data.(*ModalSubmitData)
	return d, ok
}

// Reply sends a built interaction response.
func (i *Interaction) Reply(ctx context.Context, resp *payload.InteractionResponse) error {
	_, err := i.client.rest.Request(ctx, http.MethodPost, rest.InteractionCallback(i.ID, i.Token), resp)
	return err
}

// RespondMessage replies with a channel message.
func (i *Interaction) RespondMessage(ctx context.Context, spec payload.MessageSpec) error {
	msg, err := spec.MessagePayload()
	if err != nil {
		return err
	}
	resp, err := payload.NewInteractionResponse(payload.ResponseChannelMessageWithSource)
	if err != nil {
		return err
	}
	if err := resp.SetMessage(msg); err != nil {
		return err
	}
	return i.Reply(ctx, resp)
}

// Defer acknowledges the interaction so the reply can follow later. For
// component interactions the original message is left untouched.
func (i *Interaction) Defer(ctx context.Context) error {
	t := payload.ResponseDeferredChannelMessageWithSource
	if i.Type == InteractionComponent {
		t = payload.ResponseDeferredUpdateMessage
	}
	resp, err := payload.NewInteractionResponse(t)
	if err != nil {
		return err
	}
	return i.Reply(ctx, resp)
}

// Autocomplete answers an autocomplete interaction with suggestions.
func (i *Interaction) Autocomplete(ctx context.Context, choices []payload.Choice) error {
	resp, err := payload.NewInteractionResponse(payload.ResponseAutocompleteResult)
	if err != nil {
		return err
	}
	if err := resp.SetChoices(choices); err != nil {
		return err
	}
	return i.Reply(ctx, resp)
}
