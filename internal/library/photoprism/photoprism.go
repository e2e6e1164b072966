// Package photoprism implements library.Library against a remote
// PhotoPrism instance over its HTTP API.
package photoprism

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"photosweep/internal/library"
)

// pageSize is the photo search page size. PhotoPrism caps search results,
// so listings page until a short page comes back.
const pageSize = 500

// Client talks to one PhotoPrism instance. Create it with New, which
// authenticates and stores the session tokens.
type Client struct {
	baseURL       *url.URL
	token         string
	downloadToken string
	userUID       string
	httpClient    *http.Client
	bursts        *BurstReader // optional, fills burst ids the API leaves empty
}

// UseBurstDB attaches a direct database reader used to resolve burst
// membership for photos that PhotoPrism has not stacked.
func (c *Client) UseBurstDB(r *BurstReader) {
	c.bursts = r
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	Config      struct {
		DownloadToken string `json:"downloadToken"`
	} `json:"config"`
	User struct {
		UID string `json:"UID"`
	} `json:"user"`
}

// photo is the subset of the PhotoPrism photo search result we need.
type photo struct {
	UID      string  `json:"UID"`
	Name     string  `json:"Name"`
	FileName string  `json:"FileName"`
	TakenAt  string  `json:"TakenAt"`
	Width    int     `json:"Width"`
	Height   int     `json:"Height"`
	FileSize float64 `json:"FileSize"`
	Hash     string  `json:"Hash"`
	Type     string  `json:"Type"`
	StackUID string  `json:"StackUID"`
}

// New authenticates against a PhotoPrism instance and returns a client.
func New(ctx context.Context, rawURL, username, password string) (*Client, error) {
	parsed, err := url.Parse(rawURL + "/api/v1")
	if err != nil {
		return nil, fmt.Errorf("invalid PhotoPrism URL: %w", err)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	if err := c.auth(ctx, username, password); err != nil {
		return nil, fmt.Errorf("could not authenticate: %w", err)
	}
	return c, nil
}

// NewFromToken builds a client from an existing session, skipping login.
func NewFromToken(rawURL, token, downloadToken string) (*Client, error) {
	parsed, err := url.Parse(rawURL + "/api/v1")
	if err != nil {
		return nil, fmt.Errorf("invalid PhotoPrism URL: %w", err)
	}
	return &Client{
		baseURL:       parsed,
		token:         token,
		downloadToken: downloadToken,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) auth(ctx context.Context, username, password string) error {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("could not marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL("sessions"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("could not decode session response: %w", err)
	}

	c.token = session.AccessToken
	c.downloadToken = session.Config.DownloadToken
	c.userUID = session.User.UID
	return nil
}

// Logout deletes the current session.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resolveURL("session"), nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logout failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	c.token = ""
	c.downloadToken = ""
	return nil
}

// ListAssets pages through the photo search, oldest first, and returns every
// image-type photo.
func (c *Client) ListAssets(ctx context.Context) ([]library.Asset, error) {
	var assets []library.Asset

	for offset := 0; ; offset += pageSize {
		endpoint := fmt.Sprintf("photos?count=%d&offset=%d&order=oldest", pageSize, offset)
		var page []photo
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("could not list photos: %w", err)
		}

		for _, p := range page {
			if p.Type != "" && p.Type != "image" {
				continue
			}
			assets = append(assets, library.Asset{
				ID:         p.UID,
				Name:       pickName(p),
				CreatedAt:  parseTakenAt(p.TakenAt),
				Width:      p.Width,
				Height:     p.Height,
				FileSizeMB: p.FileSize / (1024 * 1024),
				BurstID:    p.StackUID,
			})
		}

		if len(page) < pageSize {
			break
		}
	}

	if c.bursts != nil {
		bursts, err := c.bursts.Bursts(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not read burst ids: %w", err)
		}
		for i := range assets {
			if assets[i].BurstID == "" {
				assets[i].BurstID = bursts[assets[i].ID]
			}
		}
	}

	return assets, nil
}

// Image downloads the primary file for a photo via the /dl/{hash} endpoint.
func (c *Client) Image(ctx context.Context, assetID string) ([]byte, error) {
	var details struct {
		Files []struct {
			Hash    string `json:"Hash"`
			Primary bool   `json:"Primary"`
		} `json:"Files"`
	}
	if err := c.getJSON(ctx, "photos/"+assetID, &details); err != nil {
		return nil, fmt.Errorf("could not get photo details: %w", err)
	}

	hash := ""
	for _, f := range details.Files {
		if f.Primary {
			hash = f.Hash
			break
		}
	}
	if hash == "" && len(details.Files) > 0 {
		hash = details.Files[0].Hash
	}
	if hash == "" {
		return nil, fmt.Errorf("no downloadable file for photo %s", assetID)
	}

	dlURL := fmt.Sprintf("%s/dl/%s?t=%s", c.baseURL.String(), hash, c.downloadToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read image data: %w", err)
	}
	return data, nil
}

// DeleteAssets archives photos in a single batch call. Archiving is
// PhotoPrism's soft delete, so a confirmed removal stays recoverable there.
func (c *Client) DeleteAssets(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	selection := struct {
		Photos []string `json:"photos"`
	}{Photos: assetIDs}

	if err := c.postJSON(ctx, "batch/photos/archive", selection, nil); err != nil {
		return fmt.Errorf("could not archive photos: %w", err)
	}
	return nil
}

// ReplaceWithEdited uploads an edited rendition to the user's upload folder
// and triggers import, leaving the original photo in place.
func (c *Client) ReplaceWithEdited(ctx context.Context, assetID string, imageData []byte) error {
	if c.userUID == "" {
		return fmt.Errorf("edit upload requires an authenticated session")
	}

	uploadToken := strconv.FormatInt(time.Now().UnixNano(), 10)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", assetID+"_edited.jpg")
	if err != nil {
		return fmt.Errorf("could not create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return fmt.Errorf("could not write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("could not close multipart writer: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/users/%s/upload/%s", c.baseURL.String(), c.userUID, uploadToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	// Move the uploaded file from the upload folder into the library.
	return c.putJSON(ctx, fmt.Sprintf("users/%s/upload/%s", c.userUID, uploadToken), map[string]any{
		"albums": []string{},
	}, nil)
}

func (c *Client) resolveURL(endpoint string) string {
	if pathPart, query, ok := strings.Cut(endpoint, "?"); ok {
		u := c.baseURL.JoinPath(pathPart)
		u.RawQuery = query
		return u.String()
	}
	return c.baseURL.JoinPath(endpoint).String()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.doJSON(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) putJSON(ctx context.Context, endpoint string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, endpoint, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(endpoint), reader)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}

func pickName(p photo) string {
	if p.FileName != "" {
		return p.FileName
	}
	if p.Name != "" {
		return p.Name
	}
	return p.UID
}

func parseTakenAt(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
