package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownOption = errors.New("unknown option")
	ErrInvalidValue  = errors.New("invalid option value")
)

// OptionID identifies a runtime-adjustable option.
type OptionID int

const (
	OptAmboss OptionID = iota
	OptExpiringHTLCs
	OptWatchChannels
	OptWatchGossip
	OptTelegramToken
	OptTelegramUsernames
	OptSMTPUsername
	OptSMTPPassword
	OptSMTPServer
	OptSMTPPort
	OptEmailFrom
	OptEmailTo
)

// Kind is the value type an option accepts.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
	KindStringList
)

type optionDef struct {
	name string
	kind Kind
}

var optionDefs = map[OptionID]optionDef{
	OptAmboss:            {"vitality-amboss", KindBool},
	OptExpiringHTLCs:     {"vitality-expiring-htlcs", KindInt},
	OptWatchChannels:     {"vitality-watch-channels", KindBool},
	OptWatchGossip:       {"vitality-watch-gossip", KindBool},
	OptTelegramToken:     {"vitality-telegram-token", KindString},
	OptTelegramUsernames: {"vitality-telegram-usernames", KindStringList},
	OptSMTPUsername:      {"vitality-smtp-username", KindString},
	OptSMTPPassword:      {"vitality-smtp-password", KindString},
	OptSMTPServer:        {"vitality-smtp-server", KindString},
	OptSMTPPort:          {"vitality-smtp-port", KindInt},
	OptEmailFrom:         {"vitality-email-from", KindString},
	OptEmailTo:           {"vitality-email-to", KindString},
}

// Options lists every option id in declaration order.
func Options() []OptionID {
	return []OptionID{
		OptAmboss, OptExpiringHTLCs, OptWatchChannels, OptWatchGossip,
		OptTelegramToken, OptTelegramUsernames, OptSMTPUsername, OptSMTPPassword,
		OptSMTPServer, OptSMTPPort, OptEmailFrom, OptEmailTo,
	}
}

// Name is the external option name, e.g. "vitality-amboss".
func (id OptionID) Name() string {
	if s, ok := optionDefs[id]; ok {
		return s.name
	}
	return fmt.Sprintf("option(%d)", int(id))
}

func (id OptionID) String() string { return id.Name() }

// Kind returns the value kind the option accepts.
func (id OptionID) Kind() Kind {
	return optionDefs[id].kind
}

// ParseOptionName resolves an external option name.
func ParseOptionName(name string) (OptionID, error) {
	for id, s := range optionDefs {
		if s.name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownOption, name)
}

// Value is a validated option value. Only the field matching Kind is set.
type Value struct {
	Kind Kind
	Bool bool
	Int  int64
	Str  string
	List []string
}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func IntValue(n int64) Value     { return Value{Kind: KindInt, Int: n} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func ListValue(l []string) Value { return Value{Kind: KindStringList, List: l} }

// Raw renders the value the way it would be typed on a command line.
func (v Value) Raw() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindStringList:
		return strings.Join(v.List, ",")
	default:
		return v.Str
	}
}

// ParseValue validates raw for option id. raw may be a decoded JSON value
// (bool, float64, json.Number, string) or a plain string from the command
// line.
func ParseValue(id OptionID, raw any) (Value, error) {
	def, ok := optionDefs[id]
	if !ok {
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownOption, int(id))
	}

	switch def.kind {
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return BoolValue(v), nil
		case string:
			switch v {
			case "true":
				return BoolValue(true), nil
			case "false":
				return BoolValue(false), nil
			}
		}
		return Value{}, fmt.Errorf("%w: %s is not a valid boolean", ErrInvalidValue, def.name)

	case KindInt:
		n, err := toInt(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s is not a valid integer", ErrInvalidValue, def.name)
		}
		limit := int64(math.MaxUint32)
		if id == OptSMTPPort {
			limit = math.MaxUint16
		}
		if n < 0 || n > limit {
			return Value{}, fmt.Errorf("%w: %s out of range: %d", ErrInvalidValue, def.name, n)
		}
		return IntValue(n), nil

	case KindStringList:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s is not a valid string", ErrInvalidValue, def.name)
		}
		return ListValue(normalizeUsernames([]string{s})), nil

	default:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s is not a valid string", ErrInvalidValue, def.name)
		}
		return StringValue(s), nil
	}
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return 0, fmt.Errorf("unsupported type %T", raw)
}

// Apply sets option id to v. v must come from ParseValue for the same id.
func (s *Settings) Apply(id OptionID, v Value) error {
	if v.Kind != id.Kind() {
		return fmt.Errorf("%w: %s expects kind %d, got %d", ErrInvalidValue, id, id.Kind(), v.Kind)
	}

	switch id {
	case OptAmboss:
		s.Amboss = v.Bool
	case OptExpiringHTLCs:
		s.ExpiringHTLCs = uint32(v.Int)
	case OptWatchChannels:
		s.WatchChannels = v.Bool
	case OptWatchGossip:
		s.WatchGossip = v.Bool
	case OptTelegramToken:
		s.TelegramToken = v.Str
	case OptTelegramUsernames:
		s.TelegramUsernames = append([]string(nil), v.List...)
	case OptSMTPUsername:
		s.SMTPUsername = v.Str
	case OptSMTPPassword:
		s.SMTPPassword = v.Str
	case OptSMTPServer:
		s.SMTPServer = v.Str
	case OptSMTPPort:
		s.SMTPPort = uint16(v.Int)
	case OptEmailFrom:
		s.EmailFrom = v.Str
	case OptEmailTo:
		s.EmailTo = v.Str
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOption, int(id))
	}
	return nil
}
