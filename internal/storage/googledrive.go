package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"dbbackup-agent/internal/agenterrors"
)

const (
	driveUploadChunkSize = 8 * 1024 * 1024
	driveMaxRetries      = 6
	driveFilesEndpoint   = "https://www.googleapis.com/drive/v3/files"
	driveUploadEndpoint  = "https://www.googleapis.com/upload/drive/v3/files?uploadType=resumable"
)

type googleDriveProvider struct {
	client   *http.Client
	folderID string
	backoff  retryBackoff
}

func newGoogleDriveProvider(cfg Config) (*googleDriveProvider, error) {
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("google-drive: refresh token is required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return &googleDriveProvider{
		client:   oauth2.NewClient(context.Background(), tokenSource),
		folderID: cfg.FolderID,
		backoff:  newRetryBackoff(),
	}, nil
}

func (p *googleDriveProvider) Name() string { return "google-drive" }

// Upload splits remotePath ("backups/YYYY-MM-DD/<uuid>.tar.gz[.enc]") into
// its folder segments and final file name, ensures the folder path exists
// under the configured root, fails if a same-named file is already there,
// then runs a resumable upload.
func (p *googleDriveProvider) Upload(ctx context.Context, r io.Reader, remotePath, generatedID string, size int64) (string, int64, error) {
	segments := strings.Split(remotePath, "/")
	fileName := segments[len(segments)-1]
	folderSegments := segments[:len(segments)-1]

	folderID, err := p.ensureFolderPath(ctx, folderSegments)
	if err != nil {
		return "", 0, fmt.Errorf("google-drive: ensure folder path: %w", err)
	}

	existingID, err := p.findFileByName(ctx, fileName, folderID)
	if err != nil {
		return "", 0, fmt.Errorf("google-drive: check existing file: %w", err)
	}
	if existingID != "" {
		return "", 0, fmt.Errorf("google-drive: file already exists: %s", remotePath)
	}

	uploadURL, err := p.startResumableUpload(ctx, fileName, folderID, size)
	if err != nil {
		return "", 0, fmt.Errorf("google-drive: start resumable upload: %w", err)
	}

	fileID, totalSize, err := p.streamChunks(ctx, uploadURL, r)
	if err != nil {
		return "", 0, fmt.Errorf("google-drive: upload chunks: %w", err)
	}

	return fmt.Sprintf("%s/%s", folderID, fileID), totalSize, nil
}

// ensureFolderPath walks segments under the configured root folder,
// creating any that don't already exist, and returns the final folder's id.
func (p *googleDriveProvider) ensureFolderPath(ctx context.Context, segments []string) (string, error) {
	parent := p.folderID
	for _, name := range segments {
		if name == "" {
			continue
		}
		id, err := p.findFolderByName(ctx, name, parent)
		if err != nil {
			return "", err
		}
		if id == "" {
			id, err = p.createFolder(ctx, name, parent)
			if err != nil {
				return "", err
			}
		}
		parent = id
	}
	return parent, nil
}

func (p *googleDriveProvider) findFolderByName(ctx context.Context, name, parentID string) (string, error) {
	q := fmt.Sprintf("'%s' in parents and name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false", parentID, name)
	return p.findByQuery(ctx, q)
}

func (p *googleDriveProvider) findFileByName(ctx context.Context, name, folderID string) (string, error) {
	q := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false", folderID, name)
	return p.findByQuery(ctx, q)
}

func (p *googleDriveProvider) findByQuery(ctx context.Context, q string) (string, error) {
	endpoint := fmt.Sprintf("%s?q=%s&supportsAllDrives=true&includeItemsFromAllDrives=true", driveFilesEndpoint, url.QueryEscape(q))

	resp, err := p.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var listed struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return "", fmt.Errorf("decode file list response: %w", err)
	}
	if len(listed.Files) == 0 {
		return "", nil
	}
	return listed.Files[0].ID, nil
}

func (p *googleDriveProvider) createFolder(ctx context.Context, name, parentID string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"name":              name,
		"mimeType":          "application/vnd.google-apps.folder",
		"parents":           []string{parentID},
		"supportsAllDrives": true,
	})

	resp, err := p.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, driveFilesEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode folder creation response: %w", err)
	}
	return created.ID, nil
}

func (p *googleDriveProvider) startResumableUpload(ctx context.Context, fileName, folderID string, size int64) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"name":              fileName,
		"parents":           []string{folderID},
		"supportsAllDrives": true,
	})

	resp, err := p.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, driveUploadEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Upload-Content-Type", "application/octet-stream")
		if size > 0 {
			req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
		}
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("server did not return a resumable upload URL")
	}
	return location, nil
}

// streamChunks uploads r in driveUploadChunkSize pieces via Content-Range
// PUTs, using "*" for the total size until the final chunk is known.
func (p *googleDriveProvider) streamChunks(ctx context.Context, uploadURL string, r io.Reader) (string, int64, error) {
	buf := make([]byte, driveUploadChunkSize)
	var offset int64

	for {
		n, readErr := io.ReadFull(r, buf)
		isFinal := readErr == io.EOF || readErr == io.ErrUnexpectedEOF

		if n > 0 {
			total := "*"
			if isFinal {
				total = strconv.FormatInt(offset+int64(n), 10)
			}
			contentRange := fmt.Sprintf("bytes %d-%d/%s", offset, offset+int64(n)-1, total)
			chunk := append([]byte(nil), buf[:n]...)

			resp, err := p.doWithRetry(ctx, func(ctx context.Context) (*http.Request, error) {
				req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
				if err != nil {
					return nil, err
				}
				req.ContentLength = int64(len(chunk))
				req.Header.Set("Content-Range", contentRange)
				return req, nil
			})
			if err != nil {
				return "", 0, err
			}
			offset += int64(n)

			if isFinal {
				defer resp.Body.Close()
				var final struct {
					ID string `json:"id"`
				}
				if err := json.NewDecoder(resp.Body).Decode(&final); err != nil {
					return "", 0, fmt.Errorf("decode final upload response: %w", err)
				}
				return final.ID, offset, nil
			}
			resp.Body.Close()
		}

		if isFinal {
			// n == 0 on the very last read: server already has everything.
			return "", offset, fmt.Errorf("upload completed without a final response body")
		}
		if readErr != nil {
			return "", 0, fmt.Errorf("read source stream: %w", readErr)
		}
	}
}

// doWithRetry issues the request built by makeReq, retrying on 429 and 5xx
// responses with exponential backoff, up to driveMaxRetries attempts.
func (p *googleDriveProvider) doWithRetry(ctx context.Context, makeReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= driveMaxRetries; attempt++ {
		req, err := makeReq(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("transient response: %s", resp.Status)
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusPermanentRedirect {
			return resp, nil
		} else {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected response %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}

		if attempt < driveMaxRetries {
			select {
			case <-time.After(p.backoff.delay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("google-drive: %w: %v", agenterrors.ErrRetriesExhausted, lastErr)
}
