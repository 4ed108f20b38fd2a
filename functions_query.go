package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseFunctionArgs implements the `!`-function argument micro-language of
// spec §4.7: `--where k=v [and k=v ...]`, `--limit N`, `--fields a,b,c`;
// anything else is a positional argument (e.g. a record id for get/show/
// open).
func parseFunctionArgs(argv string) (positional []string, where map[string]interface{}, whereRaw string, limit int, hasLimit bool, fields []string) {
	tokens := strings.Fields(argv)
	limit = -1

	for i := 0; i < len(tokens); {
		switch tokens[i] {
		case "--where":
			i++
			var parts []string
			for i < len(tokens) && !strings.HasPrefix(tokens[i], "--") {
				parts = append(parts, tokens[i])
				i++
			}
			whereRaw = strings.Join(parts, " ")
			where = parseWhereClause(whereRaw)
		case "--limit":
			i++
			if i < len(tokens) {
				limit = atoiOr(tokens[i], limit)
				hasLimit = true
				i++
			}
		case "--fields":
			i++
			if i < len(tokens) {
				fields = strings.Split(tokens[i], ",")
				i++
			}
		default:
			positional = append(positional, tokens[i])
			i++
		}
	}
	return positional, where, whereRaw, limit, hasLimit, fields
}

// parseWhereClause splits `k=v and k=v` clauses and coerces each value.
func parseWhereClause(clause string) map[string]interface{} {
	if clause == "" {
		return nil
	}
	out := make(map[string]interface{})
	for _, part := range strings.Split(clause, " and ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := splitAt(part, '=')
		if !ok {
			continue
		}
		out[k] = coerceValue(v)
	}
	return out
}

// coerceValue auto-coerces a where-clause value to boolean/number, else a
// string with surrounding quotes stripped (spec §4.7).
func coerceValue(v string) interface{} {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func tokenForUser(u *User) (token string) {
	conn := u.Conn()
	if conn == nil {
		return ""
	}
	_, _, _, _, _, token = conn.identitySnapshot()
	return token
}

// findFunction implements `find` (spec §4.7): POST /api/find/{schema} with
// {where, limit<=50, select?}, default limit 10.
func findFunction(s *Server, u *User, ch *Channel, argv string) {
	_, where, whereRaw, limit, hasLimit, fields := parseFunctionArgs(argv)
	if !hasLimit || limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	body := map[string]interface{}{"limit": limit}
	if where != nil {
		body["where"] = where
	}
	if len(fields) > 0 {
		body["select"] = fields
	}

	resp, err := s.backend.Find(context.Background(), tokenForUser(u), ch.Schema, body)
	s.recordBackendOutcome("find", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil {
		s.serverNoticeUser(u, ch.Name, "find failed: "+err.Error())
		return
	}
	if resp.Status < 200 || resp.Status >= 300 {
		s.serverNoticeUser(u, ch.Name, "find failed: "+resp.ErrorText())
		return
	}

	suffix := ""
	if whereRaw != "" {
		suffix = fmt.Sprintf(" (where %s)", whereRaw)
	}
	s.serverNoticeChannel(ch, fmt.Sprintf("Found %d record(s)%s", len(resp.Rows), suffix))
	for _, row := range resp.Rows {
		s.serverNoticeChannel(ch, renderRow(row))
	}
}

// listFunction implements `list` (spec §4.7): GET /api/data/{schema}?limit=N,
// N<=100, default 20.
func listFunction(s *Server, u *User, ch *Channel, argv string) {
	_, _, _, limit, hasLimit, _ := parseFunctionArgs(argv)
	if !hasLimit || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	resp, err := s.backend.GetData(context.Background(), tokenForUser(u), ch.Schema, "", limit)
	s.recordBackendOutcome("get_data", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil {
		s.serverNoticeUser(u, ch.Name, "list failed: "+err.Error())
		return
	}
	if resp.Status < 200 || resp.Status >= 300 {
		s.serverNoticeUser(u, ch.Name, "list failed: "+resp.ErrorText())
		return
	}

	s.serverNoticeChannel(ch, fmt.Sprintf("%d record(s)", len(resp.Rows)))
	for _, row := range resp.Rows {
		s.serverNoticeChannel(ch, renderRow(row))
	}
}

// countFunction implements `count` (spec §4.7 and scenario 6): POST
// /api/aggregate/{schema} with {aggregate:{total:{$count:'*'}}, where?}.
func countFunction(s *Server, u *User, ch *Channel, argv string) {
	_, where, whereRaw, _, _, _ := parseFunctionArgs(argv)

	body := map[string]interface{}{
		"aggregate": map[string]interface{}{
			"total": map[string]interface{}{"$count": "*"},
		},
	}
	if where != nil {
		body["where"] = where
	}

	resp, err := s.backend.Aggregate(context.Background(), tokenForUser(u), ch.Schema, body)
	s.recordBackendOutcome("aggregate", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil {
		s.serverNoticeUser(u, ch.Name, "count failed: "+err.Error())
		return
	}
	if resp.Status < 200 || resp.Status >= 300 || len(resp.Rows) == 0 {
		s.serverNoticeUser(u, ch.Name, "count failed: "+resp.ErrorText())
		return
	}

	total := toInt64(resp.Rows[0]["total"])
	suffix := ""
	if whereRaw != "" {
		suffix = fmt.Sprintf(" (where %s)", whereRaw)
	}
	s.serverNoticeChannel(ch, fmt.Sprintf("Total: %d record(s)%s", total, suffix))
}

// recordIDFor resolves the id argument for get/show: explicit positional
// arg in a schema channel, or the channel's own record id in a record
// channel.
func recordIDFor(ch *Channel, positional []string) (id string, ok bool) {
	if ch.isRecordChannel() {
		return ch.RecordID, true
	}
	if len(positional) > 0 {
		return positional[0], true
	}
	return "", false
}

// getFunction implements `get` (spec §4.7). Per-field File-API retrieval is
// not implemented; --fields only narrows the rendered output.
func getFunction(s *Server, u *User, ch *Channel, argv string) {
	positional, _, _, _, _, fields := parseFunctionArgs(argv)
	id, ok := recordIDFor(ch, positional)
	if !ok {
		s.serverNoticeUser(u, ch.Name, "usage: !get <id> [--fields a,b]")
		return
	}

	resp, err := s.backend.GetData(context.Background(), tokenForUser(u), ch.Schema, id, 0)
	s.recordBackendOutcome("get_data", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil {
		s.serverNoticeUser(u, ch.Name, "get failed: "+err.Error())
		return
	}
	if resp.Status < 200 || resp.Status >= 300 || len(resp.Rows) == 0 {
		s.serverNoticeUser(u, ch.Name, "get failed: "+resp.ErrorText())
		return
	}

	row := resp.Rows[0]
	if len(fields) > 0 {
		filtered := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := row[f]; ok {
				filtered[f] = v
			}
		}
		row = filtered
	}
	s.serverNoticeChannel(ch, renderRow(row))
}

// showFunction implements `show` (spec §4.7): one line per field.
func showFunction(s *Server, u *User, ch *Channel, argv string) {
	positional, _, _, _, _, _ := parseFunctionArgs(argv)
	id, ok := recordIDFor(ch, positional)
	if !ok {
		s.serverNoticeUser(u, ch.Name, "usage: !show <id>")
		return
	}

	resp, err := s.backend.GetData(context.Background(), tokenForUser(u), ch.Schema, id, 0)
	s.recordBackendOutcome("get_data", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil {
		s.serverNoticeUser(u, ch.Name, "show failed: "+err.Error())
		return
	}
	if resp.Status < 200 || resp.Status >= 300 || len(resp.Rows) == 0 {
		s.serverNoticeUser(u, ch.Name, "show failed: "+resp.ErrorText())
		return
	}

	keys := make([]string, 0, len(resp.Rows[0]))
	for k := range resp.Rows[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.serverNoticeChannel(ch, fmt.Sprintf("%s: %v", k, resp.Rows[0][k]))
	}
}

// openFunction implements `open` (spec §4.7): validates the record via GET,
// then creates/joins `#{schema}/{id}` for the sender.
func openFunction(s *Server, u *User, ch *Channel, argv string) {
	positional, _, _, _, _, _ := parseFunctionArgs(argv)
	if len(positional) == 0 {
		s.serverNoticeUser(u, ch.Name, "usage: !open <id>")
		return
	}
	id := positional[0]

	resp, err := s.backend.GetData(context.Background(), tokenForUser(u), ch.Schema, id, 0)
	s.recordBackendOutcome("get_data", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil || resp.Status < 200 || resp.Status >= 300 {
		s.serverNoticeUser(u, ch.Name, "open failed: record not found")
		return
	}

	parsed, ok := parseChannelName("#" + ch.Schema + "/" + id)
	if !ok {
		s.serverNoticeUser(u, ch.Name, "open failed: invalid record id")
		return
	}

	recordCh, _ := u.Tenant.getOrCreateChannel(parsed, u.Username)
	if !recordCh.isMember(u) {
		s.performJoin(u, recordCh, "")
	}
}

// renderRow renders one backend record as a single summary line.
func renderRow(row map[string]interface{}) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, " ")
}
