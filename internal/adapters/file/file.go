package file

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// MaxDownloadSize caps downloads at Telegram's bot API file size limit.
const MaxDownloadSize = 20 << 20

// DownloadFile returns the byte content of a file on a provided URL.
func DownloadFile(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		err = fmt.Errorf("error creating request %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		err = fmt.Errorf("error executing request %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status code on download: %d", res.StatusCode)
		log.Error().Err(err).Send()
		return nil, err
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, MaxDownloadSize+1))
	if err != nil {
		err = fmt.Errorf("error reading response %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	if len(buf) > MaxDownloadSize {
		return nil, fmt.Errorf("file exceeds %d bytes", MaxDownloadSize)
	}

	return buf, nil
}
