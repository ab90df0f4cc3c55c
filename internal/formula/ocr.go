package formula

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPOCR calls a pix2tex-style HTTP service: POST multipart "file",
// response {"latex": "..."}.
type HTTPOCR struct {
	url  string
	http *http.Client
}

func NewHTTPOCR(url string, timeout time.Duration) *HTTPOCR {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPOCR{
		url:  strings.TrimRight(url, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (o *HTTPOCR) Predict(ctx context.Context, imageBytes []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "formula.png")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(imageBytes); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/predict", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return "", fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed struct {
		Latex string `json:"latex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	return parsed.Latex, nil
}
