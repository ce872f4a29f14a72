//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
// Package directory resolves driver display names for the conversation
// list. It is an external collaborator: lookups are display-only and a
// failing directory must never block or fail the messaging paths.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dispatch-chat/errors"
)

type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type DriverDirectory interface {
	Lookup(ctx context.Context, driverID string) (Profile, error)
}

// HTTPDirectory talks to the driver directory service over JSON.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDirectory) Lookup(ctx context.Context, driverID string) (Profile, error) {
	endpoint := fmt.Sprintf("%s/drivers/%s", d.baseURL, url.PathEscape(driverID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, err
	}
	res, err := d.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Profile{}, errors.ErrNotFound
	default:
		return Profile{}, fmt.Errorf("driver directory returned %d", res.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
