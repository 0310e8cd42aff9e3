// Package netx holds plain HTTP transfer helpers for archive objects.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/dmitrijs2005/tessplot/internal/filex"
)

var ErrUnexpectedStatus = errors.New("unexpected http status")

// Download fetches url with client and stores the body at dst, replacing any
// existing file. Parent directories are created. It returns the number of
// bytes written.
func Download(ctx context.Context, client *http.Client, url, dst string) (int64, error) {
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
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download %s: %w: %s; body: %s", url, ErrUnexpectedStatus, resp.Status, string(b))
	}

	if _, err := filex.EnsureDir(filepath.Dir(dst)); err != nil {
		return 0, err
	}

	var n int64
	err = filex.WriteAtomic(dst, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, resp.Body)
		if copyErr != nil {
			return fmt.Errorf("download %s: %w", url, copyErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
