package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bizpulse/bizpulse/analyst/internal/config"
)

// maxRecordBytes bounds the size of a record fetched over HTTP.
const maxRecordBytes = 1 << 20

type httpLoader struct {
	src    config.Source
	client *http.Client
}

// Load fetches a JSON record object from the source endpoint.
func (l *httpLoader) Load(ctx context.Context) (*Result, error) {
	res := newResult(l.src)

	resp, err := get(ctx, l.client, l.src.Endpoint, "application/json")
	if err != nil {
		res.Err = fmt.Errorf("http source %q: %w", l.src.ID, err)
		slog.Warn("source: http fetch failed", "source", l.src.ID, "err", err)
		return res, nil
	}
	defer resp.Body.Close()

	fields := make(map[string]any)
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRecordBytes)).Decode(&fields); err != nil {
		res.Err = fmt.Errorf("http source %q: decode json: %w", l.src.ID, err)
		return res, nil
	}
	res.Fields = fields
	return res, nil
}
