package payload

import (
	"encoding/json"
	"regexp"
)

// CommandType selects where an application command appears.
type CommandType int

const (
	ChatInputCommand CommandType = 1
	UserCommand      CommandType = 2
	MessageCommand   CommandType = 3
)

// OptionType is the value kind of a command option.
type OptionType int

const (
	OptionSubCommand      OptionType = 1
	OptionSubCommandGroup OptionType = 2
	OptionString          OptionType = 3
	OptionInteger         OptionType = 4
	OptionBoolean         OptionType = 5
	OptionUser            OptionType = 6
	OptionChannel         OptionType = 7
	OptionRole            OptionType = 8
	OptionMentionable     OptionType = 9
	OptionNumber          OptionType = 10
	OptionAttachment      OptionType = 11
)

const (
	maxCommandOptions = 25
	maxChoices        = 25
)

var chatInputName = regexp.MustCompile(`^[-_a-z0-9]{1,32}$`)

// Choice is a fixed value offered for a string/integer/number option.
type Choice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Option describes one command parameter (or nested sub-command).
type Option struct {
	Type         OptionType `json:"type"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Required     bool       `json:"required,omitempty"`
	Autocomplete bool       `json:"autocomplete,omitempty"`
	Choices      []Choice   `json:"choices,omitempty"`
	Options      []Option   `json:"options,omitempty"`
}

// CommandOptions is the plain form of a command definition. It is wrapped
// into a validated *Command before submission.
type CommandOptions struct {
	Name                     string      `json:"name"`
	Type                     CommandType `json:"type,omitempty"`
	Description              string      `json:"description"`
	Options                  []Option    `json:"options,omitempty"`
	DefaultMemberPermissions string      `json:"default_member_permissions,omitempty"`
	NSFW                     bool        `json:"nsfw,omitempty"`
}

// CommandSpec is accepted wherever a command definition is submitted: either
// a built *Command or plain CommandOptions.
type CommandSpec interface {
	CommandPayload() (*Command, error)
}

// CommandPayload validates o into a *Command.
func (o CommandOptions) CommandPayload() (*Command, error) { return NewCommand(o) }

// Command is a validated application command definition.
type Command struct {
	data CommandOptions
}

// NewCommand validates every field of o. Type defaults to ChatInputCommand.
func NewCommand(o CommandOptions) (*Command, error) {
	c := &Command{data: CommandOptions{Type: ChatInputCommand}}
	if o.Type != 0 {
		if err := c.SetType(o.Type); err != nil {
			return nil, err
		}
	}
	if err := c.SetName(o.Name); err != nil {
		return nil, err
	}
	if err := c.SetDescription(o.Description); err != nil {
		return nil, err
	}
	if err := c.SetOptions(o.Options); err != nil {
		return nil, err
	}
	if o.DefaultMemberPermissions != "" {
		if err := c.SetDefaultMemberPermissions(o.DefaultMemberPermissions); err != nil {
			return nil, err
		}
	}
	c.SetNSFW(o.NSFW)
	return c, nil
}

// CommandPayload checks the fields no single setter can: a name is set and a
// chat-input command has its description.
func (c *Command) CommandPayload() (*Command, error) {
	if c.data.Name == "" {
		return nil, invalid("command name", "required")
	}
	if c.data.Type == ChatInputCommand && c.data.Description == "" {
		return nil, invalid("command description", "required for chat input commands")
	}
	return c, nil
}

func (c *Command) Name() string      { return c.data.Name }
func (c *Command) Type() CommandType { return c.data.Type }

// SetType rejects a change that would leave the current name or description
// invalid for the new type.
func (c *Command) SetType(t CommandType) error {
	if err := checkRange("command type", int(t), int(ChatInputCommand), int(MessageCommand)); err != nil {
		return err
	}
	if t == ChatInputCommand && c.data.Name != "" && !chatInputName.MatchString(c.data.Name) {
		return invalid("command name", "%q must match %s", c.data.Name, chatInputName)
	}
	if t != ChatInputCommand && c.data.Description != "" {
		return invalid("command description", "only chat input commands take a description")
	}
	c.data.Type = t
	return nil
}

// SetName enforces the lowercase slug form for chat-input commands; user and
// message commands accept any 1-32 character name.
func (c *Command) SetName(name string) error {
	if c.data.Type == ChatInputCommand {
		if !chatInputName.MatchString(name) {
			return invalid("command name", "%q must match %s", name, chatInputName)
		}
	} else if err := checkLen("command name", name, 1, 32); err != nil {
		return err
	}
	c.data.Name = name
	return nil
}

// SetDescription requires 1-100 characters for chat-input commands and an
// empty description otherwise.
func (c *Command) SetDescription(d string) error {
	if c.data.Type != ChatInputCommand {
		if d != "" {
			return invalid("command description", "only chat input commands take a description")
		}
		c.data.Description = ""
		return nil
	}
	if err := checkLen("command description", d, 1, 100); err != nil {
		return err
	}
	c.data.Description = d
	return nil
}

func (c *Command) SetOptions(opts []Option) error {
	if err := checkCount("command options", len(opts), maxCommandOptions); err != nil {
		return err
	}
	for _, o := range opts {
		if err := validateOption(o); err != nil {
			return err
		}
	}
	c.data.Options = append([]Option(nil), opts...)
	return nil
}

func (c *Command) AddOption(o Option) error {
	if err := checkCount("command options", len(c.data.Options)+1, maxCommandOptions); err != nil {
		return err
	}
	if err := validateOption(o); err != nil {
		return err
	}
	c.data.Options = append(c.data.Options, o)
	return nil
}

func (c *Command) SetDefaultMemberPermissions(p string) error {
	if err := checkPermissions("default member permissions", p); err != nil {
		return err
	}
	c.data.DefaultMemberPermissions = p
	return nil
}

func (c *Command) SetNSFW(nsfw bool) { c.data.NSFW = nsfw }

func (c *Command) MarshalJSON() ([]byte, error) { return json.Marshal(c.data) }

func validateOption(o Option) error {
	if err := checkRange("option type", int(o.Type), int(OptionSubCommand), int(OptionAttachment)); err != nil {
		return err
	}
	if !chatInputName.MatchString(o.Name) {
		return invalid("option name", "%q must match %s", o.Name, chatInputName)
	}
	if err := checkLen("option description", o.Description, 1, 100); err != nil {
		return err
	}
	if err := checkCount("option choices", len(o.Choices), maxChoices); err != nil {
		return err
	}
	for _, ch := range o.Choices {
		if err := checkLen("choice name", ch.Name, 1, 100); err != nil {
			return err
		}
	}
	if len(o.Choices) > 0 && o.Autocomplete {
		return invalid("option autocomplete", "cannot combine autocomplete with fixed choices")
	}
	if err := checkCount("option options", len(o.Options), maxCommandOptions); err != nil {
		return err
	}
	for _, sub := range o.Options {
		if err := validateOption(sub); err != nil {
			return err
		}
	}
	return nil
}
