package mqtt

import "strings"

const defaultPrefix = "spa"

// Topics builds the topic names under a configured prefix.
//
//	<prefix>/state           retained State Document
//	<prefix>/status          retained online/offline marker (also the LWT)
//	<prefix>/command         inbound command envelopes
//	<prefix>/command/result  result of each inbound command
type Topics struct {
	Prefix string
}

func (t Topics) base() string {
	p := strings.Trim(strings.TrimSpace(t.Prefix), "/")
	if p == "" {
		return defaultPrefix
	}
	return p
}

func (t Topics) State() string         { return t.base() + "/state" }
func (t Topics) Status() string        { return t.base() + "/status" }
func (t Topics) Command() string       { return t.base() + "/command" }
func (t Topics) CommandResult() string { return t.base() + "/command/result" }
