package main

import (
	"fmt"

	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
)

// Numeric reply codes referenced in spec.md §4, §6, and the Glossary.
// Grounded on the teacher's messageClient/messageFromServer convention of
// auto-prefixing numeric replies with the client's current nick (or '*'
// pre-registration) -- see Connection.Nick.
const (
	rplWelcome      = "001"
	rplYourHost     = "002"
	rplCreated      = "003"
	rplMyInfo       = "004"
	rplUModeIs      = "221"
	rplChannelModeIs = "324"
	rplCreationTime = "329"
	rplNoTopic      = "331"
	rplTopic        = "332"
	rplInviting     = "341"
	rplNamReply     = "353"
	rplEndOfNames   = "366"
	rplMOTD         = "372"
	rplMOTDStart    = "375"
	rplEndOfMOTD    = "376"

	errInternal           = "400"
	errNoSuchNick         = "401"
	errNoSuchChannel      = "403"
	errCannotSendToChan   = "404"
	errUnknownCommand     = "421"
	errNoNicknameGiven    = "431"
	errErroneousNickname  = "432"
	errNicknameInUse      = "433"
	errUserNotInChannel   = "441"
	errNotOnChannel       = "442"
	errUserOnChannel      = "443"
	errNotRegistered      = "451"
	errNeedMoreParams     = "461"
	errAlreadyRegistered  = "462"
	errInviteOnlyChan     = "473"
	errBadChannelKey      = "475"
	errChanOPrivsNeeded   = "482"
)

// numeric sends a standard `:server CODE nick middle... :trailing` reply,
// auto-prefixing the connection's current nick per spec.md Testable
// property 6.
func (s *Server) numeric(c *Connection, code string, middle []string, trailing string) {
	full := append([]string{c.Nick()}, middle...)
	_ = c.Send(ircmsg.Trail(s.Name, code, full, trailing))
}

func (s *Server) notice(c *Connection, from, target, text string) {
	_ = c.Send(ircmsg.Trail(from, "NOTICE", []string{target}, text))
}

func (s *Server) serverNoticeChannel(ch *Channel, text string) {
	for member := range ch.snapshotMembers() {
		if conn := member.Conn(); conn != nil {
			s.notice(conn, s.Name, ch.Name, text)
		}
	}
}

func (s *Server) serverNoticeUser(u *User, channelName, text string) {
	if conn := u.Conn(); conn != nil {
		s.notice(conn, s.Name, channelName, text)
	}
}

// replyWelcome through replyMOTD implement the 001-004 + MOTD sequence
// of spec.md §4.3 and scenario 1.
func (s *Server) replyWelcome(c *Connection, prefix string) {
	s.numeric(c, rplWelcome, nil, fmt.Sprintf("Welcome to the IRC Network %s", prefix))
}

func (s *Server) replyYourHost(c *Connection) {
	s.numeric(c, rplYourHost, nil, fmt.Sprintf("Your host is %s, running version %s", s.Name, s.Config.Version))
}

func (s *Server) replyCreated(c *Connection) {
	s.numeric(c, rplCreated, nil, fmt.Sprintf("This server was created %s", s.createdAt))
}

func (s *Server) replyMyInfo(c *Connection) {
	s.numeric(c, rplMyInfo, []string{s.Name, s.Config.Version}, "")
}

func (s *Server) replyMOTD(c *Connection) {
	if len(s.Config.MOTD) == 0 {
		s.numeric(c, rplEndOfMOTD, nil, "End of /MOTD command")
		return
	}
	s.numeric(c, rplMOTDStart, nil, fmt.Sprintf("- %s Message of the day -", s.Name))
	for _, line := range s.Config.MOTD {
		s.numeric(c, rplMOTD, nil, "- "+line)
	}
	s.numeric(c, rplEndOfMOTD, nil, "End of /MOTD command")
}

func (s *Server) replyTopic(c *Connection, ch *Channel) {
	topic, setBy, setAt := ch.topicSnapshot()
	_ = setBy
	_ = setAt
	if topic == "" {
		if ch.Meta != nil {
			s.numeric(c, rplTopic, []string{ch.Name}, fmt.Sprintf("%d records", ch.Meta.RecordCount))
			return
		}
		s.numeric(c, rplNoTopic, []string{ch.Name}, "No topic is set")
		return
	}
	s.numeric(c, rplTopic, []string{ch.Name}, topic)
}

func (s *Server) replyNamesAndEnd(c *Connection, ch *Channel) {
	names := ch.namesList(c.HasCap("multi-prefix"))
	for _, chunk := range chunkNames(names) {
		s.numeric(c, rplNamReply, []string{"=", ch.Name}, chunk)
	}
	s.numeric(c, rplEndOfNames, []string{ch.Name}, "End of /NAMES list")
}

// chunkNames keeps RPL_NAMREPLY lines under the wire length limit by
// batching names, mirroring the teacher's length-aware truncation habit in
// ircd.go's privmsgCommand.
func chunkNames(names []string) []string {
	const maxLen = 400
	var chunks []string
	cur := ""
	for _, n := range names {
		candidate := n
		if cur != "" {
			candidate = cur + " " + n
		}
		if len(candidate) > maxLen && cur != "" {
			chunks = append(chunks, cur)
			cur = n
			continue
		}
		cur = candidate
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}

func (s *Server) replyInviting(c *Connection, target, channel string) {
	s.numeric(c, rplInviting, []string{target}, channel)
}

func (s *Server) replyUModeIs(c *Connection, modes string) {
	s.numeric(c, rplUModeIs, []string{modes}, "")
}

func (s *Server) replyChannelModeIs(c *Connection, ch *Channel) {
	s.numeric(c, rplChannelModeIs, []string{ch.Name, ch.modesString()}, "")
	s.numeric(c, rplCreationTime, []string{ch.Name, fmt.Sprintf("%d", ch.CreatedAt.Unix())}, "")
}

func (s *Server) errUnknown(c *Connection, cmd string) {
	s.numeric(c, errUnknownCommand, []string{cmd}, "Unknown command")
}

func (s *Server) errNotRegistered(c *Connection) {
	s.numeric(c, errNotRegistered, nil, "You have not registered")
}

func (s *Server) errAlreadyRegistered(c *Connection) {
	s.numeric(c, errAlreadyRegistered, nil, "You may not reregister")
}

func (s *Server) errNickInUse(c *Connection, nick string) {
	s.numeric(c, errNicknameInUse, []string{nick}, "Nickname is already in use")
}

func (s *Server) errErroneousNick(c *Connection, nick string) {
	s.numeric(c, errErroneousNickname, []string{nick}, "Erroneous nickname")
}

func (s *Server) errNoNickGiven(c *Connection) {
	s.numeric(c, errNoNicknameGiven, nil, "No nickname given")
}

func (s *Server) errNeedMoreParams(c *Connection, cmd string) {
	s.numeric(c, errNeedMoreParams, []string{cmd}, "Not enough parameters")
}

func (s *Server) errNoSuchNickReply(c *Connection, nick string) {
	s.numeric(c, errNoSuchNick, []string{nick}, "No such nick/channel")
}

func (s *Server) errNoSuchChannelReply(c *Connection, channel string) {
	s.numeric(c, errNoSuchChannel, []string{channel}, "No such channel")
}

func (s *Server) errCannotSend(c *Connection, channel, detail string) {
	s.numeric(c, errCannotSendToChan, []string{channel}, "Cannot send to channel ("+detail+")")
}

func (s *Server) errNotOnChannelReply(c *Connection, channel string) {
	s.numeric(c, errNotOnChannel, []string{channel}, "You're not on that channel")
}

func (s *Server) errUserOnChannelReply(c *Connection, user, channel string) {
	s.numeric(c, errUserOnChannel, []string{user, channel}, "is already on channel")
}

// errUserNotInChan reports that the named nick is not a member of the
// channel (441), used by KICK when the target isn't present.
func (s *Server) errUserNotInChan(c *Connection, nick, channel string) {
	s.numeric(c, errUserNotInChannel, []string{nick, channel}, "They aren't on that channel")
}

func (s *Server) errInviteOnly(c *Connection, channel string) {
	s.numeric(c, errInviteOnlyChan, []string{channel}, "Cannot join channel (+i)")
}

func (s *Server) errBadKey(c *Connection, channel string) {
	s.numeric(c, errBadChannelKey, []string{channel}, "Cannot join channel (+k)")
}

func (s *Server) errChanOPrivs(c *Connection, channel string) {
	s.numeric(c, errChanOPrivsNeeded, []string{channel}, "You're not channel operator")
}

func (s *Server) errInternalServer(c *Connection) {
	s.numeric(c, errInternal, nil, "Internal server error")
}

func (s *Server) errAccessDenied(c *Connection, detail string) {
	s.numeric(c, errNoSuchChannel, nil, "Access denied"+detail)
}
