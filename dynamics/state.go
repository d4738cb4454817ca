package dynamics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
)

// Bookmark is the outcome of one record as reported in state.
type Bookmark struct {
	Hash    string         `json:"hash"`
	Success bool           `json:"success"`
	ID      string         `json:"id,omitempty"`
	Error   string         `json:"error,omitempty"`
	Updates map[string]any `json:"updates,omitempty"`
}

type StreamSummary struct {
	Success int `json:"success"`
	Fail    int `json:"fail"`
}

// State collects bookmarks from concurrent record writes. Keys of incoming
// state other than bookmarks and summary are passed through untouched.
type State struct {
	mu        sync.Mutex
	bookmarks map[string][]Bookmark
	summary   map[string]*StreamSummary
	extra     map[string]json.RawMessage
}

func NewState() *State {
	return &State{
		bookmarks: map[string][]Bookmark{},
		summary:   map[string]*StreamSummary{},
		extra:     map[string]json.RawMessage{},
	}
}

// Merge folds a state value received from upstream into s.
func (s *State) Merge(raw []byte) error {
	value := gjson.ParseBytes(raw)
	if !value.IsObject() {
		return eris.New("state value is not a JSON object")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	value.ForEach(func(key, item gjson.Result) bool {
		switch key.String() {
		case "bookmarks":
			var bookmarks map[string][]Bookmark
			if err = json.Unmarshal([]byte(item.Raw), &bookmarks); err != nil {
				err = eris.Wrap(err, "invalid bookmarks in state")
				return false
			}
			for stream, list := range bookmarks {
				s.bookmarks[stream] = append(s.bookmarks[stream], list...)
			}
		case "summary":
			var summary map[string]StreamSummary
			if err = json.Unmarshal([]byte(item.Raw), &summary); err != nil {
				err = eris.Wrap(err, "invalid summary in state")
				return false
			}
			for stream, counts := range summary {
				total := s.streamSummary(stream)
				total.Success += counts.Success
				total.Fail += counts.Fail
			}
		default:
			s.extra[key.String()] = json.RawMessage(item.Raw)
		}
		return true
	})
	return err
}

func (s *State) streamSummary(stream string) *StreamSummary {
	summary, exists := s.summary[stream]
	if !exists {
		summary = &StreamSummary{}
		s.summary[stream] = summary
	}
	return summary
}

// Record adds the outcome of one record.
func (s *State) Record(stream string, bookmark Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[stream] = append(s.bookmarks[stream], bookmark)
	summary := s.streamSummary(stream)
	if bookmark.Success {
		summary.Success++
	} else {
		summary.Fail++
	}
}

// Bookmarks returns a copy of the bookmarks of a stream.
func (s *State) Bookmarks(stream string) []Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Bookmark(nil), s.bookmarks[stream]...)
}

// Summary returns the counts of a stream.
func (s *State) Summary(stream string) StreamSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if summary, exists := s.summary[stream]; exists {
		return *summary
	}
	return StreamSummary{}
}

func (s *State) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.extra)+2)
	for key, value := range s.extra {
		out[key] = value
	}
	out["bookmarks"] = s.bookmarks
	out["summary"] = s.summary
	return json.Marshal(out)
}

// WriteMessage writes s as a STATE message line.
func (s *State) WriteMessage(w io.Writer) error {
	value, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "failed to encode state")
	}
	line, err := json.Marshal(struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}{Type: "STATE", Value: value})
	if err != nil {
		return eris.Wrap(err, "failed to encode state message")
	}
	_, err = w.Write(append(line, '\n'))
	return err
}

// Streams lists the streams with bookmarks, sorted.
func (s *State) Streams() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	streams := make([]string, 0, len(s.bookmarks))
	for stream := range s.bookmarks {
		streams = append(streams, stream)
	}
	sort.Strings(streams)
	return streams
}

// RecordHash identifies a record by the SHA-256 of its canonical JSON
// (RFC 8785), so key order and spacing do not change it.
func RecordHash(raw []byte) string {
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
