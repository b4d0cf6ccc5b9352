package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/playvault/playvault-go/internal/errors"
)

// readChunk is the unit in which response bodies are consumed, both for
// progress callbacks and for bandwidth accounting.
const readChunk = 64 * 1024

// Fetch retrieves the whole resource with a single GET. It returns the body,
// the server-declared total size (-1 when the server sent no Content-Length),
// and an error. onRead, when non-nil, is called after every body read with the
// cumulative byte count.
func (c *Client) Fetch(ctx context.Context, url string, onRead func(received int64)) ([]byte, int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, 0, apperrors.NewNetworkError("failed to build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, apperrors.NewCancelledError("transfer cancelled")
		}
		return nil, 0, apperrors.NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, 0, apperrors.NewTransferError(
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	declared := resp.ContentLength

	body, err := c.readBody(ctx, resp.Body, declared, onRead)
	if err != nil {
		return nil, declared, err
	}

	return body, declared, nil
}

// FetchRange retrieves bytes [start, end] inclusive with a Range request. It
// returns the chunk and the resource's total size parsed from Content-Range
// (or -1 when the server answered 200 without one, in which case the body is
// the whole resource).
func (c *Client) FetchRange(ctx context.Context, url string, start, end int64) ([]byte, int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, 0, apperrors.NewNetworkError("failed to build request", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, apperrors.NewCancelledError("transfer cancelled")
		}
		return nil, 0, apperrors.NewNetworkError("range request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, 0, apperrors.NewTransferError(
			fmt.Sprintf("unexpected status %d for range %d-%d", resp.StatusCode, start, end), nil)
	}

	total := int64(-1)
	if resp.StatusCode == http.StatusPartialContent {
		total = parseContentRangeTotal(resp.Header.Get("Content-Range"))
	} else if resp.ContentLength >= 0 {
		// Server ignored the Range header and sent everything
		total = resp.ContentLength
	}

	body, err := c.readBody(ctx, resp.Body, resp.ContentLength, nil)
	if err != nil {
		return nil, total, err
	}

	return body, total, nil
}

// readBody drains a response body in readChunk slices, honoring cancellation
// and the bandwidth cap between reads.
func (c *Client) readBody(ctx context.Context, r io.Reader, sizeHint int64, onRead func(received int64)) ([]byte, error) {
	var body []byte
	if sizeHint > 0 {
		body = make([]byte, 0, sizeHint)
	}

	buf := make([]byte, readChunk)
	var received int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewCancelledError("transfer cancelled")
		}

		n, err := r.Read(buf)
		if n > 0 {
			if c.limiter != nil {
				if werr := c.limiter.WaitN(ctx, n); werr != nil {
					if ctx.Err() != nil {
						return nil, apperrors.NewCancelledError("transfer cancelled")
					}
					return nil, apperrors.NewNetworkError("bandwidth limiter rejected read", werr)
				}
			}
			body = append(body, buf[:n]...)
			received += int64(n)
			if onRead != nil {
				onRead(received)
			}
		}

		if err == io.EOF {
			return body, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.NewCancelledError("transfer cancelled")
			}
			return nil, apperrors.NewNetworkError("failed reading response body", err)
		}
	}
}

// parseContentRangeTotal extracts the total size from a Content-Range header
// of the form "bytes start-end/total". Returns -1 when the total is absent or
// unparseable.
func parseContentRangeTotal(header string) int64 {
	if header == "" {
		return -1
	}

	slash := strings.LastIndexByte(header, '/')
	if slash < 0 || slash == len(header)-1 {
		return -1
	}

	totalStr := header[slash+1:]
	if totalStr == "*" {
		return -1
	}

	total, err := strconv.ParseInt(totalStr, 10, 64)
	if err != nil {
		return -1
	}
	return total
}
