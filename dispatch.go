package main

import (
	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
)

// handlerFunc is the shape every command handler implements: parse args,
// validate, mutate tenant/channel/user state, emit replies/broadcasts.
type handlerFunc func(s *Server, c *Connection, args string)

// commandSpec is dispatch metadata for one verb (spec §4.2: "Handler
// metadata: name, needsRegistration").
type commandSpec struct {
	name              string
	needsRegistration bool
	handler           handlerFunc
}

// commandTable is the static COMMAND -> handler table (spec §4.2, §9
// "Duck-typed command handlers... register in a static dispatch table").
//
// Grounded on the teacher's if-chain dispatch in ircd.go's handleMessage
// and the newer generations' UserClient.handleMessage/LocalClient.handleMessage
// switch statements, collapsed into one table instead of three divergent
// per-generation switches.
var commandTable map[string]commandSpec

func init() {
	commandTable = map[string]commandSpec{
		"CAP":  {"CAP", false, capCommand},
		"NICK": {"NICK", false, nickCommand},
		"USER": {"USER", false, userCommand},
		"QUIT": {"QUIT", false, quitCommand},

		"JOIN":      {"JOIN", true, joinCommand},
		"PART":      {"PART", true, partCommand},
		"KICK":      {"KICK", true, kickCommand},
		"TOPIC":     {"TOPIC", true, topicCommand},
		"INVITE":    {"INVITE", true, inviteCommand},
		"MODE":      {"MODE", true, modeCommand},
		"FORCEJOIN": {"FORCEJOIN", true, forcejoinCommand},
		"FORCEPART": {"FORCEPART", true, forcepartCommand},

		"PRIVMSG": {"PRIVMSG", true, privmsgCommand},
		"NOTICE":  {"NOTICE", true, noticeCommand},

		"PING": {"PING", false, pingCommand},
		"PONG": {"PONG", false, pongCommand},
	}

	for _, verb := range notImplementedVerbs {
		commandTable[verb] = commandSpec{verb, true, notImplementedHandler(verb)}
	}
}

// dispatch implements spec §4.2's three-step contract: unknown command,
// registration gate, then invoke (with panic containment so a handler bug
// degrades to 400 instead of killing the connection's read loop).
func (s *Server) dispatch(c *Connection, msg ircmsg.Message) {
	spec, ok := commandTable[msg.Command]
	if !ok {
		s.errUnknown(c, msg.Command)
		return
	}

	if spec.needsRegistration && !c.Registered() {
		s.errNotRegistered(c)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic", "command", msg.Command, "recover", r)
			s.errInternalServer(c)
		}
	}()

	spec.handler(s, c, msg.Args)
}
