package dynamics

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxMessageSize bounds one input line; attachments travel inline as base64.
const maxMessageSize = 64 << 20

// Target reads Singer messages and writes their records to Dynamics.
// A failed record is reported in state and never stops the run.
type Target struct {
	Config    Config
	Requester Requester
	State     *State

	sinks map[string]*Sink
}

func NewTarget(cfg Config, requester Requester) *Target {
	return &Target{
		Config:    cfg,
		Requester: requester,
		State:     NewState(),
		sinks:     map[string]*Sink{},
	}
}

// sink is only called from the reading goroutine.
func (t *Target) sink(stream string) (*Sink, error) {
	if s, exists := t.sinks[stream]; exists {
		return s, nil
	}
	s, err := NewSink(stream, t.Config, t.Requester)
	if err != nil {
		return nil, err
	}
	t.sinks[stream] = s
	return s, nil
}

// Process consumes messages from in until EOF and waits for every record
// to finish. It returns an error only for unreadable input.
func (t *Target) Process(ctx context.Context, in io.Reader) error {
	g := new(errgroup.Group)
	g.SetLimit(t.Config.Parallelism())

	readErr := t.read(ctx, in, g)
	_ = g.Wait()
	return readErr
}

func (t *Target) read(ctx context.Context, in io.Reader, g *errgroup.Group) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<20), maxMessageSize)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return eris.Errorf("line %d is not a valid JSON message", lineNumber)
		}
		message := gjson.ParseBytes(line)
		stream := message.Get("stream").String()

		switch strings.ToUpper(message.Get("type").String()) {
		case "SCHEMA":
			if _, err := t.sink(stream); err != nil {
				zap.L().Warn("records of this stream will fail", zap.String("stream", stream), zap.Error(err))
			}
		case "RECORD":
			raw := []byte(message.Get("record").Raw)
			sink, err := t.sink(stream)
			if err != nil {
				t.State.Record(stream, Bookmark{Hash: RecordHash(raw), Error: err.Error()})
				continue
			}
			g.Go(func() error {
				t.processRecord(ctx, sink, raw)
				return nil
			})
		case "STATE":
			if err := t.State.Merge([]byte(message.Get("value").Raw)); err != nil {
				zap.L().Warn("ignoring state message", zap.Int("line", lineNumber), zap.Error(err))
			}
		default:
			zap.L().Debug("ignoring message", zap.String("type", message.Get("type").String()))
		}
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrap(err, "failed to read input")
	}
	return nil
}

func (t *Target) processRecord(ctx context.Context, sink *Sink, raw []byte) {
	recordID := uuid.NewString()
	ctx = WithRequestID(ctx, recordID)
	log := zap.L().With(zap.String("stream", sink.Route.Stream), zap.String("record_id", recordID))
	bookmark := Bookmark{Hash: RecordHash(raw)}

	payload, err := sink.PreprocessRecord(raw)
	if err != nil {
		log.Error("failed to map record", zap.Error(err))
		bookmark.Error = err.Error()
		t.State.Record(sink.Route.Stream, bookmark)
		return
	}

	result, err := sink.UpsertRecord(ctx, payload)
	bookmark.ID = result.ExternalID
	bookmark.Success = err == nil && result.Success
	if len(result.StateUpdates) > 0 {
		bookmark.Updates = result.StateUpdates
	}
	if err != nil {
		log.Error("failed to write record", zap.String("state", result.State.String()), zap.Error(err))
		bookmark.Error = err.Error()
	}
	t.State.Record(sink.Route.Stream, bookmark)
}
