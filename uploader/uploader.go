// Package uploader implements the uploader (C7): POSTs a finished clip as
// multipart form data to the configured anonymous file host, streaming
// per-byte progress into the job's progress field.
package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/streamwatch/streamwatch/errors"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/log"
)

// requestTimeout bounds the whole upload; per spec.md §6 uploads otherwise
// have no explicit limit but are cancelled by shutdown, so this is generous.
const requestTimeout = 30 * time.Minute

// Uploader POSTs a clip file to an external anonymous file host. Grounded on
// clients/callback_client.go's retryablehttp.NewClient() construction, but
// with retries disabled (spec.md §9: "no automatic retry; client may POST
// /api/upload again").
type Uploader struct {
	client   *http.Client
	endpoint string
	broker   *jobs.Broker
}

func New(endpoint string, broker *jobs.Broker) *Uploader {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	rc.HTTPClient.Timeout = requestTimeout

	return &Uploader{client: rc.StandardClient(), endpoint: endpoint, broker: broker}
}

// hostResponse is the anonymous file host's expected JSON shape.
type hostResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Reason  string `json:"reason"`
}

// Upload requires job to be in `completed`. It transitions to `uploading`,
// streams the clip file as multipart form data, and transitions to
// `uploaded` on a 2xx success response or `error` otherwise.
func (u *Uploader) Upload(ctx context.Context, job jobs.Job) error {
	if _, err := u.broker.Transition(job.ID, jobs.StateUploading, jobs.Patch{}); err != nil {
		return err
	}

	uploadedURL, err := u.doUpload(ctx, job)
	if err != nil {
		if _, terr := u.broker.Transition(job.ID, jobs.StateError, jobs.Patch{ErrorReason: jobs.StrPtr(err.Error())}); terr != nil {
			log.LogError(job.ID, "failed to record upload error on job", terr)
		}
		return err
	}

	_, err = u.broker.Transition(job.ID, jobs.StateUploaded, jobs.Patch{UploadedURL: jobs.StrPtr(uploadedURL)})
	return err
}

func (u *Uploader) doUpload(ctx context.Context, job jobs.Job) (string, error) {
	file, err := os.Open(job.ClipPath)
	if err != nil {
		return "", fmt.Errorf("failed to open clip file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat clip file: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer mw.Close()

		part, err := mw.CreateFormFile("file", filepath.Base(job.ClipPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}

		tracker := &progressReader{
			r:       file,
			total:   info.Size(),
			jobID:   job.ID,
			broker:  u.broker,
		}
		if _, err := io.Copy(part, tracker); err != nil {
			pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", errors.NewUploadError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewUploadError(fmt.Sprintf("failed to read response body: %s", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.NewUploadError(fmt.Sprintf("host returned status %d: %s", resp.StatusCode, string(body)))
	}

	var hr hostResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return "", errors.NewUploadError(fmt.Sprintf("failed to parse host response: %s", err))
	}
	if !hr.Success {
		return "", errors.NewUploadError(hr.Reason)
	}
	return hr.URL, nil
}

// progressReader wraps an io.Reader and reports cumulative percent read back
// into the job broker, implementing the "streaming per-chunk progress" rule
// from spec.md §4.7.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	jobID  string
	broker *jobs.Broker
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			pct := int(float64(p.read) / float64(p.total) * 100)
			if _, uerr := p.broker.UpdateProgress(p.jobID, pct); uerr != nil {
				log.LogError(p.jobID, "failed to update upload progress", uerr)
			}
		}
	}
	return n, err
}
