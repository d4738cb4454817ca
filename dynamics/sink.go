package dynamics

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Sink writes the records of one stream.
type Sink struct {
	Route        Route
	Mapper       FieldMapper
	Orchestrator Orchestrator
}

// NewSink routes stream to its entity surface.
func NewSink(stream string, cfg Config, requester Requester) (*Sink, error) {
	route, err := RouteStream(stream, cfg)
	if err != nil {
		return nil, err
	}
	return &Sink{
		Route:        route,
		Mapper:       FieldMapper{Config: cfg},
		Orchestrator: Orchestrator{Requester: requester},
	}, nil
}

// PreprocessRecord decodes string-encoded nested fields and maps the record.
func (s *Sink) PreprocessRecord(raw []byte) (MappedPayload, error) {
	if !gjson.ValidBytes(raw) {
		return MappedPayload{}, eris.Errorf("%s record is not valid JSON", s.Route.Stream)
	}
	record := NewSource(NormalizeRecord(raw))
	if !record.Get("@this").IsObject() {
		return MappedPayload{}, eris.Errorf("%s record is not a JSON object", s.Route.Stream)
	}
	return s.Mapper.Map(s.Route, record), nil
}

// UpsertRecord writes one mapped record.
func (s *Sink) UpsertRecord(ctx context.Context, payload MappedPayload) (UpsertResult, error) {
	orchestrator := s.Orchestrator
	orchestrator.Logger = zap.L().With(
		zap.String("stream", s.Route.Stream),
		zap.String("record_id", RequestIDFrom(ctx)),
	)
	return orchestrator.Upsert(ctx, payload)
}
