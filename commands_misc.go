package main

// notImplementedVerbs is the read-only/NOTIMPL catalog (spec §1 Out of
// scope): "each returns a fixed numeric with static content and follows the
// same dispatch contract as any other command." Grounded on the teacher's
// ircd.go, which answers VERSION/TIME/INFO/etc. with a single static
// numeric per verb rather than real introspection.
var notImplementedVerbs = []string{
	"VERSION", "TIME", "INFO", "STATS", "ADMIN", "MOTD",
	"HELP", "LINKS", "OPER", "KILL", "REHASH", "WALLOPS",
}

type notImplReply struct {
	code    string
	middle  []string
	trailing string
}

var notImplTable = map[string]notImplReply{
	"VERSION": {"351", []string{"monk-irc-1.0.0", "."}, "bridge server"},
	"TIME":    {"391", nil, "server time not tracked"},
	"INFO":    {"371", nil, "monk-irc bridges IRC clients to a record-oriented backend"},
	"STATS":   {"219", []string{"*"}, "End of /STATS report"},
	"ADMIN":   {"256", nil, "administrative info unavailable"},
	"HELP":    {"524", nil, "Help not found"},
	"LINKS":   {"365", []string{"*"}, "End of /LINKS list"},
	"OPER":    {"491", nil, "No O-lines for your host"},
	"KILL":    {"481", nil, "Permission Denied - You're not an IRC operator"},
	"REHASH":  {"382", []string{"ircd.conf"}, "Rehashing"},
	"WALLOPS": {"461", []string{"WALLOPS"}, "not supported"},
}

// notImplementedHandler returns a handler closed over its verb so the
// shared dispatch table (dispatch.go) can register one commandSpec per
// verb without a parallel switch statement.
func notImplementedHandler(verb string) handlerFunc {
	if verb == "MOTD" {
		return func(s *Server, c *Connection, args string) {
			s.replyMOTD(c)
		}
	}
	reply := notImplTable[verb]
	return func(s *Server, c *Connection, args string) {
		s.numeric(c, reply.code, reply.middle, reply.trailing)
	}
}
