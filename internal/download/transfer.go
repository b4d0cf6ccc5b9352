package download

import (
	"context"
	"fmt"
	"math"

	apperrors "github.com/playvault/playvault-go/internal/errors"
)

// Transport fetches payloads from the media server. Implemented by the HTTP
// transport client; replaced by fakes in tests.
type Transport interface {
	Fetch(ctx context.Context, url string, onRead func(received int64)) ([]byte, int64, error)
	FetchRange(ctx context.Context, url string, start, end int64) ([]byte, int64, error)
}

// transferResult carries the reconstructed payload and the size the server
// declared for it.
type transferResult struct {
	payload      []byte
	declaredSize int64
}

// fetchPayload retrieves a track payload, starting with a single full-range
// GET and falling back to byte-range continuation when the server delivered
// fewer bytes than it declared. onProgress receives monotonically
// non-decreasing percentages within the attempt.
func (o *Orchestrator) fetchPayload(ctx context.Context, url string, expectedSize int64, onProgress func(progress int, received, total int64)) (*transferResult, error) {
	report := func(received, total int64) {
		if onProgress == nil {
			return
		}
		if total <= 0 {
			total = expectedSize
		}
		if total <= 0 {
			return
		}
		progress := int(math.Round(float64(received) / float64(total) * 100))
		if progress > 100 {
			progress = 100
		}
		onProgress(progress, received, total)
	}

	payload, declared, err := o.transport.Fetch(ctx, url, func(received int64) {
		report(received, 0)
	})
	if err != nil {
		return nil, err
	}
	if declared <= 0 {
		declared = expectedSize
	}

	// Continue with byte-range requests when the server cut the body short
	for declared > 0 && int64(len(payload)) < declared {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewCancelledError("transfer cancelled")
		}

		start := int64(len(payload))
		end := start + o.chunkSize - 1
		if end >= declared {
			end = declared - 1
		}

		chunk, total, err := o.transport.FetchRange(ctx, url, start, end)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			// Server has no more bytes; the completeness check decides
			// whether what we got is usable
			break
		}
		if total > 0 {
			declared = total
		}

		payload = append(payload, chunk...)
		report(int64(len(payload)), declared)
	}

	return &transferResult{payload: payload, declaredSize: declared}, nil
}

// validatePayload rejects payloads shorter than the completeness threshold of
// the declared size. Sizes may legitimately differ by a few bytes; a shortfall
// beyond the threshold means a corrupt or truncated transfer that must not be
// persisted.
func (o *Orchestrator) validatePayload(result *transferResult) error {
	if len(result.payload) == 0 {
		return apperrors.NewTransferError("transfer produced an empty payload", nil)
	}

	if result.declaredSize <= 0 {
		return nil
	}

	minBytes := int64(float64(result.declaredSize) * o.minCompleteRatio)
	if int64(len(result.payload)) < minBytes {
		return apperrors.NewTransferError(
			fmt.Sprintf("incomplete payload: got %d of %d declared bytes",
				len(result.payload), result.declaredSize), nil)
	}

	return nil
}
