package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/synergyaccounting/synergy-web/internal/domain/accounting"
	"github.com/synergyaccounting/synergy-web/internal/ports"
)

// MaxImageBytes bounds uploaded profile images.
const MaxImageBytes = 5 << 20

// ChartOfAccounts lists every ledger account.
func (cl *Client) ChartOfAccounts(ctx context.Context, token string) ([]accounting.Account, error) {
	var accounts []accounting.Account
	err := cl.doJSON(ctx, call{
		endpoint: "chart_of_accounts",
		method:   http.MethodGet,
		path:     "/api/accounts/chart-of-accounts",
		token:    token,
	}, &accounts)
	return accounts, err
}

// UploadImage stores a profile picture for userID. The image body is closed.
func (cl *Client) UploadImage(ctx context.Context, token string, userID int64, img ports.Image) error {
	if img.Body == nil {
		return errors.New("image body is required")
	}
	defer img.Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := filepath.Base(strings.TrimSpace(img.Filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = strconv.FormatInt(userID, 10) + ".jpg"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(img.Body, MaxImageBytes+1))
	if err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	if n > MaxImageBytes {
		return fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	return cl.doDiscard(ctx, call{
		endpoint:    "dashboard_upload_image",
		method:      http.MethodPost,
		path:        "/api/dashboard/upload-image",
		token:       token,
		body:        &buf,
		contentType: mw.FormDataContentType(),
		header:      http.Header{"User": []string{strconv.FormatInt(userID, 10)}},
	})
}

// ProfileImage fetches the stored picture for userID. The caller closes Body.
func (cl *Client) ProfileImage(ctx context.Context, token string, userID int64) (ports.Image, error) {
	name := strconv.FormatInt(userID, 10) + ".jpg"
	resp, err := cl.do(ctx, call{
		endpoint: "dashboard_uploads",
		method:   http.MethodGet,
		path:     "/api/dashboard/uploads/" + name,
		token:    token,
		header:   http.Header{"Accept": []string{"image/*"}},
	})
	if err != nil {
		return ports.Image{}, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return ports.Image{Filename: name, ContentType: contentType, Body: resp.Body}, nil
}
