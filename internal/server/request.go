package server

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/labstack/echo/v4"

	"timeflow/internal/core"
)

// decodeCompletionRequest reads and strictly decodes the request body.
// A missing or non-JSON content type, unknown fields, wrong types, trailing data and undecodable
// encodings are invalid request bodies; an empty body or a missing/empty prompt yields the
// prompt-required error. maxSize bounds the body after decompression.
func decodeCompletionRequest(r *http.Request, maxSize int64) (*core.CompletionRequest, error) {
	ct := r.Header.Get(echo.HeaderContentType)
	if ct == "" {
		return nil, core.NewInvalidRequestError("missing content type", nil)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != echo.MIMEApplicationJSON {
		return nil, core.NewInvalidRequestError(fmt.Sprintf("unsupported content type %q", ct), err)
	}

	body, err := requestBody(r, maxSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	var req core.CompletionRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.NewPromptRequiredError()
		}
		return nil, bodyReadError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, bodyReadError(err)
		}
		return nil, core.NewInvalidRequestError("unexpected data after JSON object", nil)
	}

	if req.Prompt == "" {
		return nil, core.NewPromptRequiredError()
	}
	return &req, nil
}

// bodyReadError keeps body-limit rejections as 413 and maps everything else to an invalid body.
func bodyReadError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return echo.ErrStatusRequestEntityTooLarge
	}
	return core.NewInvalidRequestError("failed to decode request body: "+err.Error(), err)
}

// requestBody returns the request body, inflated according to Content-Encoding.
// Supports gzip, deflate (zlib-wrapped, or raw as some clients send it), and brotli (br) encodings.
// An inflated body larger than maxSize is rejected with 413.
func requestBody(r *http.Request, maxSize int64) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(r.Header.Get(echo.HeaderContentEncoding)))
	if encoding == "" || encoding == "identity" {
		return r.Body, nil
	}

	// Read the compressed body fully so a corrupt stream surfaces here rather than mid-decode.
	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, bodyReadError(err)
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, core.NewInvalidRequestError("invalid gzip body", err)
		}
		defer func() {
			_ = gz.Close()
		}()
		reader = gz
	case "deflate":
		var rc io.ReadCloser
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			rc = zr
		} else {
			rc = flate.NewReader(bytes.NewReader(raw))
		}
		defer func() {
			_ = rc.Close()
		}()
		reader = rc
	case "br":
		reader = brotli.NewReader(bytes.NewReader(raw))
	default:
		return nil, core.NewInvalidRequestError(fmt.Sprintf("unsupported content encoding %q", encoding), nil)
	}

	inflated, err := io.ReadAll(io.LimitReader(reader, maxSize+1))
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to decompress body", err)
	}
	if int64(len(inflated)) > maxSize {
		return nil, echo.ErrStatusRequestEntityTooLarge
	}
	return io.NopCloser(bytes.NewReader(inflated)), nil
}
