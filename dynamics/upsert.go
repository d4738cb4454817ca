package dynamics

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// UpsertState tracks how far one record's writes have progressed.
type UpsertState int

const (
	HeaderPending UpsertState = iota
	HeaderCreated
	LinesPending
	LinesCreated
	SubLinesPending
	SubLinesCreated
	AttachmentsPending
	Done
	// CompensatedDelete: a dependent call failed and the header was deleted.
	CompensatedDelete
	// FailedNoCompensation: a dependent call failed and so did the delete.
	FailedNoCompensation
)

func (s UpsertState) String() string {
	switch s {
	case HeaderPending:
		return "HEADER_PENDING"
	case HeaderCreated:
		return "HEADER_CREATED"
	case LinesPending:
		return "LINES_PENDING"
	case LinesCreated:
		return "LINES_CREATED"
	case SubLinesPending:
		return "SUBLINES_PENDING"
	case SubLinesCreated:
		return "SUBLINES_CREATED"
	case AttachmentsPending:
		return "ATTACHMENTS_PENDING"
	case Done:
		return "DONE"
	case CompensatedDelete:
		return "COMPENSATED_DELETE"
	case FailedNoCompensation:
		return "FAILED_NO_COMPENSATION"
	default:
		return "UNKNOWN"
	}
}

// UpsertResult is the outcome reported for one record.
type UpsertResult struct {
	ExternalID   string
	Success      bool
	StateUpdates map[string]any
	State        UpsertState
}

// Requester performs one call against the company collection root.
// body is sent as JSON unless it is a []byte.
type Requester interface {
	Request(ctx context.Context, method string, endpoint Endpoint, params url.Values, body any, headers http.Header) (Response, error)
}

// Orchestrator writes a mapped record: header, then lines and their
// sub-lines, then attachments. When anything after the header fails it
// deletes the header and returns an *UpsertError. It does not retry; the
// Requester does.
type Orchestrator struct {
	Requester Requester
	Logger    *zap.Logger
}

func (o Orchestrator) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.L()
}

// upsertRun holds the mutable state of one Upsert call.
type upsertRun struct {
	Orchestrator
	desc    *EntityDescriptor
	payload MappedPayload
	header  Source
	state   UpsertState
	log     *zap.Logger
}

func (o Orchestrator) Upsert(ctx context.Context, payload MappedPayload) (UpsertResult, error) {
	desc := payload.Route.Descriptor
	run := &upsertRun{
		Orchestrator: o,
		desc:         desc,
		payload:      payload,
		state:        HeaderPending,
		log: o.logger().With(
			zap.String("entity", desc.Kind.String()),
			zap.String("endpoint", payload.Endpoint.String()),
		),
	}

	resp, err := o.Requester.Request(ctx, http.MethodPost, payload.Endpoint, nil, payload.Header, nil)
	if err != nil {
		return UpsertResult{State: HeaderPending}, eris.Wrapf(err, "failed to create %s", desc.Kind)
	}
	run.header = resp.Source()

	externalID, exists := run.header.StringForPath(desc.IDField)
	if !exists || externalID == "" {
		// No identifier means nothing to attach lines to. Reported as success
		// with an empty id so the record is not retried.
		run.log.Warn("header response has no identifier, skipping dependent calls",
			zap.String("id_field", desc.IDField),
		)
		return UpsertResult{Success: true, StateUpdates: map[string]any{}, State: Done}, nil
	}
	run.state = HeaderCreated
	run.log = run.log.With(zap.String("external_id", externalID))

	if err := run.dependents(ctx, externalID); err != nil {
		failedIn := run.state
		compensation := run.compensate(ctx)
		terminal := CompensatedDelete
		if !compensation.Deleted {
			terminal = FailedNoCompensation
		}
		return UpsertResult{ExternalID: externalID, State: terminal}, &UpsertError{
			Entity:       desc.Kind.String(),
			ExternalID:   externalID,
			FailedIn:     failedIn,
			State:        terminal,
			Cause:        err,
			Compensation: compensation,
		}
	}

	run.log.Info("created")
	return UpsertResult{ExternalID: externalID, Success: true, StateUpdates: map[string]any{}, State: Done}, nil
}

func (r *upsertRun) dependents(ctx context.Context, externalID string) error {
	if r.desc.Lines != nil && len(r.payload.Lines) > 0 {
		if err := r.lines(ctx, externalID); err != nil {
			return err
		}
	}
	if r.desc.Attachments != nil && len(r.payload.Attachments) > 0 {
		if err := r.attachments(ctx); err != nil {
			return err
		}
	}
	r.state = Done
	return nil
}

func (r *upsertRun) linesEndpoint(externalID string) Endpoint {
	surface := r.desc.Lines
	if surface.Nested {
		return r.payload.Endpoint.Keyed(externalID).Join(surface.Path)
	}
	return r.payload.Endpoint.Sibling(surface.Path)
}

func (r *upsertRun) lines(ctx context.Context, externalID string) error {
	surface := r.desc.Lines
	endpoint := r.linesEndpoint(externalID)

	backRefs := Payload{}
	MapFields(surface.BackRefs, r.header, backRefs)
	backRefs = backRefs.Clean()

	for i, line := range r.payload.Lines {
		r.state = LinesPending
		body := line.Fields.Clone().Merge(backRefs)
		resp, err := r.Requester.Request(ctx, http.MethodPost, endpoint, nil, body, nil)
		if err != nil {
			r.log.Info("posting line failed", zap.Int("line", i), zap.Error(err))
			return eris.Wrapf(err, "failed to post line %d", i)
		}
		if len(line.Dimensions) == 0 || surface.SubLinesPath == "" {
			continue
		}

		r.state = SubLinesPending
		lineID, exists := resp.Source().StringForPath(surface.IDField)
		if !exists || lineID == "" {
			return eris.Errorf("line %d response has no %s to post dimension lines under", i, surface.IDField)
		}
		subEndpoint := endpoint.Keyed(lineID).Join(surface.SubLinesPath)
		for j, dimension := range line.Dimensions {
			if _, err := r.Requester.Request(ctx, http.MethodPost, subEndpoint, nil, dimension, nil); err != nil {
				return eris.Wrapf(err, "failed to post dimension line %d of line %d", j, i)
			}
		}
		r.state = SubLinesCreated
	}
	r.state = LinesCreated
	return nil
}

func (r *upsertRun) attachments(ctx context.Context) error {
	surface := r.desc.Attachments
	r.state = AttachmentsPending

	parent, exists := resolvePath(r.header, surface.ParentIDField)
	if !exists || parent.String() == "" {
		r.log.Warn("header response has no attachment parent id, skipping attachments",
			zap.String("parent_id_field", surface.ParentIDField),
			zap.Int("attachments", len(r.payload.Attachments)),
		)
		return nil
	}
	for i, attachment := range r.payload.Attachments {
		err := UploadAttachment(ctx, r.Requester, r.payload.AttachmentsEndpoint, parent.String(), surface.ParentType, attachment)
		if err != nil {
			return eris.Wrapf(err, "failed to upload attachment %d", i)
		}
	}
	return nil
}

// compensate deletes the created header. It runs even when ctx is done so
// a cancelled run does not leave an orphaned header behind.
func (r *upsertRun) compensate(ctx context.Context) CompensationOutcome {
	outcome := CompensationOutcome{Attempted: true}
	key, ok := r.desc.DeleteKey(r.header)
	if !ok {
		outcome.Err = eris.New("header response has no key to delete it by")
		r.log.Error("cannot delete header", zap.Error(outcome.Err))
		return outcome
	}
	endpoint := r.payload.Endpoint.Join(key)
	outcome.Endpoint = endpoint.String()

	r.log.Info("deleting header", zap.String("delete_endpoint", outcome.Endpoint))
	_, err := r.Requester.Request(context.WithoutCancel(ctx), http.MethodDelete, endpoint, nil, nil, nil)
	if err != nil {
		outcome.Err = err
		r.log.Error("deleting header failed", zap.Error(err))
		return outcome
	}
	outcome.Deleted = true
	return outcome
}
