package main

import (
	"sort"
	"strings"
)

// Modeled on this package's command dispatch table (dispatch.go), as a
// second, channel-scoped dispatch table for the `!`
// function-invocation micro-protocol of spec §4.7, which the teacher never
// had (the teacher bridges plain IRC only, with no backend query surface).

// functionContext describes which channel shapes a function may run in.
type functionContext int

const (
	ctxAny functionContext = iota
	ctxSchemaOnly
	ctxRecordOnly
	ctxSchemaOrRecord
)

type functionHandler func(s *Server, u *User, ch *Channel, argv string)

type functionSpec struct {
	name    string
	context functionContext
	summary string
	handler functionHandler
}

var functionTable map[string]functionSpec

func init() {
	functionTable = map[string]functionSpec{
		"help":   {"help", ctxAny, "list available functions", helpFunction},
		"find":   {"find", ctxSchemaOnly, "find --where k=v [and k=v] [--limit N] [--fields a,b]", findFunction},
		"list":   {"list", ctxSchemaOnly, "list [--limit N]", listFunction},
		"count":  {"count", ctxSchemaOnly, "count [--where k=v [and k=v]]", countFunction},
		"get":    {"get", ctxSchemaOrRecord, "get <id> [--fields a,b]", getFunction},
		"show":   {"show", ctxSchemaOrRecord, "show <id>", showFunction},
		"open":   {"open", ctxSchemaOnly, "open <id>", openFunction},
		"set":    {"set", ctxRecordOnly, "set <field> <value>", reservedFunction},
		"unset":  {"unset", ctxRecordOnly, "unset <field>", reservedFunction},
		"refresh": {"refresh", ctxRecordOnly, "refresh", reservedFunction},
	}
}

// dispatchFunction is the entry point from commands_messaging.go: body is
// the `!`-prefixed channel message with the leading `!` already stripped.
func (s *Server) dispatchFunction(u *User, ch *Channel, body string) {
	name, argv := splitFirstWord(body)
	name = strings.ToLower(name)

	spec, ok := functionTable[name]
	if !ok {
		s.serverNoticeUser(u, ch.Name, "Unknown function: !"+name+" (try !help)")
		return
	}

	if !contextAllows(spec.context, ch) {
		s.serverNoticeUser(u, ch.Name, "!"+name+" is not available in this channel")
		return
	}

	spec.handler(s, u, ch, argv)
}

func contextAllows(ctx functionContext, ch *Channel) bool {
	switch ctx {
	case ctxAny:
		return true
	case ctxSchemaOnly:
		return !ch.isRecordChannel()
	case ctxRecordOnly:
		return ch.isRecordChannel()
	case ctxSchemaOrRecord:
		return true
	default:
		return false
	}
}

// helpFunction lists context-appropriate functions (spec §4.7).
func helpFunction(s *Server, u *User, ch *Channel, argv string) {
	if argv != "" {
		name := strings.ToLower(strings.Fields(argv)[0])
		if spec, ok := functionTable[name]; ok {
			s.serverNoticeUser(u, ch.Name, "!"+spec.summary)
			return
		}
		s.serverNoticeUser(u, ch.Name, "Unknown function: !"+name)
		return
	}

	names := make([]string, 0, len(functionTable))
	for name, spec := range functionTable {
		if contextAllows(spec.context, ch) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	s.serverNoticeUser(u, ch.Name, "Available: !"+strings.Join(names, " !"))
}

func reservedFunction(s *Server, u *User, ch *Channel, argv string) {
	s.serverNoticeUser(u, ch.Name, "Not implemented")
}
