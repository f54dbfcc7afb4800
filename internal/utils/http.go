package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DownloadFile streams a URL to the given path. The body is written to a
// .part file first and renamed into place on success, so a failed download
// never leaves a valid-looking output file behind. Progress may be nil.
func DownloadFile(ctx context.Context, client *http.Client, dest, url string, progress *Progress) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status: %s", resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	var body io.Reader = resp.Body
	if progress != nil {
		progress.SetTotal(resp.ContentLength)
		body = progress.ProxyReader(resp.Body)
	}

	written, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return written, nil
}
