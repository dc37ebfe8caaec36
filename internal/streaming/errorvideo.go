package streaming

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/streamgate/streamgate/internal/usenet/fileserver"
)

// ServeErrorVideo proxies the pre-rendered error-as-video clip from the
// file-server collaborator, parameterized by message (§4.9). Used for
// user-visible failures that occur after a video response has already been
// committed, so the client keeps receiving playable bytes instead of a bare
// HTTP error.
func ServeErrorVideo(ctx context.Context, files *fileserver.Client, httpClient *http.Client, w http.ResponseWriter, message string) error {
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, files.ErrorVideoURL(message), nil)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch error video: %w", err)
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}
