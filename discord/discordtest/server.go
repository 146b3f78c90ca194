// Package discordtest is an in-memory Discord REST server for tests. It
// implements just the routes the wipe uses and records every call.
package discordtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// BulkAgeLimit mirrors the platform's bulk-delete ceiling.
const BulkAgeLimit = 14 * 24 * time.Hour

// Message is a stored message.
type Message struct {
	ID        string
	Timestamp time.Time
	System    bool
}

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	At     time.Time
}

// Interceptor may answer a request before the fake does; returning true means
// the response has been written.
type Interceptor func(w http.ResponseWriter, r *http.Request, n int) bool

// Server is a fake guild behind an httptest.Server.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	guildID   string
	guildName string
	channels  []*discordgo.Channel
	threads   []*discordgo.Channel
	private   map[string]bool
	messages  map[string][]Message // newest first
	calls     []Call
	nextID    uint64

	// FailArchived makes archived-thread listing fail for these channel ids.
	FailArchived map[string]bool
	// FailUnarchive makes every unarchive call fail.
	FailUnarchive bool
	// ArchivedPageSize limits archived thread pages; 0 means unlimited.
	ArchivedPageSize int
	// Intercept runs first for every request; n is the request's index.
	Intercept Interceptor
}

// New starts a fake for one guild. It is closed when the test ends.
func New(t testing.TB, guildID, guildName string) *Server {
	s := &Server{
		guildID:      guildID,
		guildName:    guildName,
		private:      make(map[string]bool),
		messages:     make(map[string][]Message),
		FailArchived: make(map[string]bool),
		nextID:       1_000_000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddChannel registers a guild channel.
func (s *Server) AddChannel(id, name string, typ discordgo.ChannelType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, &discordgo.Channel{ID: id, GuildID: s.guildID, Name: name, Type: typ})
}

// AddThread registers a thread under parentID.
func (s *Server) AddThread(id, name, parentID string, archived, private bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	typ := discordgo.ChannelTypeGuildPublicThread
	if private {
		typ = discordgo.ChannelTypeGuildPrivateThread
	}
	s.threads = append(s.threads, &discordgo.Channel{
		ID:       id,
		GuildID:  s.guildID,
		Name:     name,
		Type:     typ,
		ParentID: parentID,
		ThreadMetadata: &discordgo.ThreadMetadata{
			Archived:         archived,
			ArchiveTimestamp: time.Now().Add(-time.Duration(len(s.threads)+1) * time.Hour),
		},
	})
	s.private[id] = private
}

// AddMessages stores count messages of the given age in a channel or thread.
// Later calls produce newer ids, like real snowflakes.
func (s *Server) AddMessages(channelID string, count int, age time.Duration) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().Add(-age)
	added := make([]Message, 0, count)
	for i := 0; i < count; i++ {
		s.nextID++
		added = append(added, Message{ID: strconv.FormatUint(s.nextID, 10), Timestamp: ts})
	}
	s.insert(channelID, added)
	return added
}

// AddSystemMessage stores one undeletable message.
func (s *Server) AddSystemMessage(channelID string, age time.Duration) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := Message{ID: strconv.FormatUint(s.nextID, 10), Timestamp: time.Now().Add(-age), System: true}
	s.insert(channelID, []Message{m})
	return m
}

func (s *Server) insert(channelID string, msgs []Message) {
	all := append(s.messages[channelID], msgs...)
	sort.Slice(all, func(i, j int) bool { return idLess(all[j].ID, all[i].ID) })
	s.messages[channelID] = all
}

// Messages returns the messages left in a container.
func (s *Server) Messages(channelID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages[channelID]...)
}

// ChannelIDs returns the ids of the channels that still exist.
func (s *Server) ChannelIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.channels))
	for _, c := range s.channels {
		ids = append(ids, c.ID)
	}
	return ids
}

// Calls returns every recorded request in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many calls matched method and a path pattern, where
// "*" matches one segment.
func (s *Server) Count(method, pattern string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && Match(pattern, c.Path) {
			n++
		}
	}
	return n
}

// Match reports whether path matches pattern segment by segment; "*" matches any segment.
func Match(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if ps[i] != "*" && ps[i] != xs[i] {
			return false
		}
	}
	return true
}

func idLess(a, b string) bool {
	x, _ := strconv.ParseUint(a, 10, 64)
	y, _ := strconv.ParseUint(b, 10, 64)
	return x < y
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body, At: time.Now()})
	intercept := s.Intercept
	s.mu.Unlock()

	if r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, 0, "401: Unauthorized")
		return
	}
	if intercept != nil && intercept(w, r, n) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && Match("guilds/*", r.URL.Path):
		s.getGuild(w, parts[1])
	case r.Method == http.MethodGet && Match("guilds/*/channels", r.URL.Path):
		writeJSON(w, http.StatusOK, s.channels)
	case r.Method == http.MethodGet && Match("guilds/*/threads/active", r.URL.Path):
		s.activeThreads(w)
	case r.Method == http.MethodGet && Match("channels/*/messages", r.URL.Path):
		s.listMessages(w, r, parts[1])
	case r.Method == http.MethodDelete && Match("channels/*/messages/*", r.URL.Path):
		s.deleteMessage(w, parts[1], parts[3])
	case r.Method == http.MethodPost && Match("channels/*/messages/bulk-delete", r.URL.Path):
		s.bulkDelete(w, parts[1], body)
	case r.Method == http.MethodGet && Match("channels/*/threads/archived/*", r.URL.Path):
		s.archivedThreads(w, r, parts[1], parts[4] == "private")
	case r.Method == http.MethodPatch && Match("channels/*", r.URL.Path):
		s.patchChannel(w, parts[1], body)
	case r.Method == http.MethodDelete && Match("channels/*", r.URL.Path):
		s.deleteChannel(w, parts[1])
	default:
		writeError(w, http.StatusNotFound, 0, "404: Not Found")
	}
}

func (s *Server) getGuild(w http.ResponseWriter, id string) {
	if id != s.guildID {
		writeError(w, http.StatusNotFound, 10004, "Unknown Guild")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": s.guildID, "name": s.guildName})
}

func (s *Server) activeThreads(w http.ResponseWriter) {
	active := []*discordgo.Channel{}
	for _, t := range s.threads {
		if !t.ThreadMetadata.Archived {
			active = append(active, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": active, "members": []any{}, "has_more": false})
}

func (s *Server) archivedThreads(w http.ResponseWriter, r *http.Request, channelID string, private bool) {
	if s.FailArchived[channelID] {
		writeError(w, http.StatusForbidden, 50001, "Missing Access")
		return
	}
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
			return
		}
		before = t
	}

	var matched []*discordgo.Channel
	for _, t := range s.threads {
		if t.ParentID != channelID || !t.ThreadMetadata.Archived || s.private[t.ID] != private {
			continue
		}
		if !before.IsZero() && !t.ThreadMetadata.ArchiveTimestamp.Before(before) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ThreadMetadata.ArchiveTimestamp.After(matched[j].ThreadMetadata.ArchiveTimestamp)
	})
	hasMore := false
	if s.ArchivedPageSize > 0 && len(matched) > s.ArchivedPageSize {
		matched = matched[:s.ArchivedPageSize]
		hasMore = true
	}
	if matched == nil {
		matched = []*discordgo.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": matched, "members": []any{}, "has_more": hasMore})
}

func (s *Server) patchChannel(w http.ResponseWriter, id string, body []byte) {
	if s.FailUnarchive {
		writeError(w, http.StatusForbidden, 50013, "Missing Permissions")
		return
	}
	var edit struct {
		Archived *bool `json:"archived"`
	}
	if err := json.Unmarshal(body, &edit); err != nil {
		writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
		return
	}
	for _, t := range s.threads {
		if t.ID == id {
			if edit.Archived != nil {
				t.ThreadMetadata.Archived = *edit.Archived
			}
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, 10003, "Unknown Channel")
}

func (s *Server) exists(id string) bool {
	for _, c := range s.channels {
		if c.ID == id {
			return true
		}
	}
	for _, t := range s.threads {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request, channelID string) {
	if !s.exists(channelID) {
		writeError(w, http.StatusNotFound, 10003, "Unknown Channel")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	before := r.URL.Query().Get("before")

	page := []map[string]any{}
	for _, m := range s.messages[channelID] {
		if before != "" && !idLess(m.ID, before) {
			continue
		}
		page = append(page, map[string]any{
			"id":         m.ID,
			"channel_id": channelID,
			"content":    "message " + m.ID,
			"timestamp":  m.Timestamp.UTC().Format(time.RFC3339Nano),
			"author":     map[string]any{"id": "42", "username": "someone"},
		})
		if len(page) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) removeMessage(channelID, id string) bool {
	msgs := s.messages[channelID]
	for i, m := range msgs {
		if m.ID == id {
			s.messages[channelID] = append(msgs[:i:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Server) findMessage(channelID, id string) (Message, bool) {
	for _, m := range s.messages[channelID] {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

func (s *Server) archived(id string) bool {
	for _, t := range s.threads {
		if t.ID == id {
			return t.ThreadMetadata.Archived
		}
	}
	return false
}

func (s *Server) deleteMessage(w http.ResponseWriter, channelID, id string) {
	if s.archived(channelID) {
		writeError(w, http.StatusBadRequest, 50083, "Thread is archived")
		return
	}
	m, ok := s.findMessage(channelID, id)
	if !ok {
		writeError(w, http.StatusNotFound, 10008, "Unknown Message")
		return
	}
	if m.System {
		writeError(w, http.StatusBadRequest, 50021, "Cannot execute action on a system message")
		return
	}
	s.removeMessage(channelID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bulkDelete(w http.ResponseWriter, channelID string, body []byte) {
	if s.archived(channelID) {
		writeError(w, http.StatusBadRequest, 50083, "Thread is archived")
		return
	}
	var req struct {
		Messages []string `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.Messages) < 2 || len(req.Messages) > 100 {
		writeError(w, http.StatusBadRequest, 50035, "Invalid Form Body")
		return
	}
	cutoff := time.Now().Add(-BulkAgeLimit)
	for _, id := range req.Messages {
		m, ok := s.findMessage(channelID, id)
		if ok && !m.Timestamp.After(cutoff) {
			writeError(w, http.StatusBadRequest, 50034, "You can only bulk delete messages that are under 14 days old.")
			return
		}
	}
	for _, id := range req.Messages {
		s.removeMessage(channelID, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteChannel(w http.ResponseWriter, id string) {
	for i, c := range s.channels {
		if c.ID != id {
			continue
		}
		s.channels = append(s.channels[:i:i], s.channels[i+1:]...)
		delete(s.messages, id)
		kept := s.threads[:0:0]
		for _, t := range s.threads {
			if t.ParentID == id {
				delete(s.messages, t.ID)
				continue
			}
			kept = append(kept, t)
		}
		s.threads = kept
		writeJSON(w, http.StatusOK, c)
		return
	}
	writeError(w, http.StatusNotFound, 10003, "Unknown Channel")
}

// RateLimited writes a 429 asking the caller to wait retryAfter seconds.
func RateLimited(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	w.Header().Set("X-RateLimit-Scope", "user")
	writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "You are being rate limited.", "global": false})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message})
}
