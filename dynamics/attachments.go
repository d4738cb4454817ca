package dynamics

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"path"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/rotisserie/eris"
)

// Bytes returns the attachment content, decoding inline base64 or
// downloading the URL.
func (a Attachment) Bytes(ctx context.Context) ([]byte, error) {
	if a.Content != "" {
		content := a.Content
		// data URLs: data:application/pdf;base64,JVBERi0...
		if strings.HasPrefix(content, "data:") {
			if _, after, found := strings.Cut(content, ","); found {
				content = after
			}
		}
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, eris.Wrapf(err, "attachment %q is not valid base64", a.FileName)
		}
		return data, nil
	}
	if a.URL == "" {
		return nil, nil
	}
	var buf bytes.Buffer
	err := requests.
		URL(a.URL).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to download attachment %q", a.URL)
	}
	return buf.Bytes(), nil
}

// Name is the file name sent to Dynamics, taken from the URL when the
// record gave none.
func (a Attachment) Name() string {
	if a.FileName != "" {
		return a.FileName
	}
	if a.URL != "" {
		if name := path.Base(strings.SplitN(a.URL, "?", 2)[0]); name != "." && name != "/" {
			return name
		}
	}
	return "attachment"
}

// UploadAttachment creates the attachment record under parentID, then sends
// its content.
func UploadAttachment(ctx context.Context, requester Requester, endpoint Endpoint, parentID, parentType string, a Attachment) error {
	content, err := a.Bytes(ctx)
	if err != nil {
		return err
	}

	metadata := Payload{
		"parentId":   parentID,
		"fileName":   a.Name(),
		"parentType": parentType,
	}
	resp, err := requester.Request(ctx, http.MethodPost, endpoint, nil, metadata, nil)
	if err != nil {
		return eris.Wrapf(err, "failed to create attachment %q", a.Name())
	}
	id, exists := resp.Source().StringForPath("id")
	if !exists || id == "" {
		return eris.Errorf("attachment %q response has no id", a.Name())
	}
	if len(content) == 0 {
		return nil
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/octet-stream")
	headers.Set("If-Match", "*")
	_, err = requester.Request(ctx, http.MethodPatch, endpoint.Keyed(id).Join("/attachmentContent"), nil, content, headers)
	if err != nil {
		return eris.Wrapf(err, "failed to upload content of attachment %q", a.Name())
	}
	return nil
}
