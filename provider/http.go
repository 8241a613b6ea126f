package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

var validate = validator.New()

// newHTTPClient builds the client used by one provider. A non-nil relay wraps the transport.
func newHTTPClient(timeout time.Duration, relay *Relay) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	if relay != nil {
		client.Transport = relay
	}
	return client
}

func makeURL(baseURL string, queryParams map[string]string) (*url.URL, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	if queryParams != nil {
		q := u.Query()
		for key, val := range queryParams {
			q.Set(key, val)
		}
		u.RawQuery = q.Encode()
	}

	return u, nil
}

func makeRequest(ctx context.Context, method string, u *url.URL, header map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}

	for k, v := range header {
		req.Header.Set(k, v)
	}

	return req, nil
}

// sendRequest performs req and decodes the JSON body into T.
// Transport errors and non-2xx statuses become ErrProviderUnavailable; undecodable bodies and
// validation failures become ErrSchemaMismatch. Numbers inside untyped values stay json.Number.
func sendRequest[T any](client *http.Client, req *http.Request, validators ...*validator.Validate) (*T, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, unavailable("request failed: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		buf := bytes.Buffer{}
		if _, err := io.Copy(&buf, io.LimitReader(res.Body, maxErrorBody)); err != nil {
			return nil, unavailable("status %s", res.Status)
		}
		return nil, unavailable("status %s: %s", res.Status, buf.String())
	}

	decoder := json.NewDecoder(res.Body)
	decoder.UseNumber()

	buf := new(T)
	if err := decoder.Decode(buf); err != nil {
		return nil, schemaMismatch(fmt.Errorf("failed to decode response: %w", err))
	}

	for _, v := range validators {
		if err := v.Struct(buf); err != nil {
			return nil, schemaMismatch(err)
		}
	}

	return buf, nil
}

// getJSON builds a GET request for baseURL+path with params and header and sends it
func getJSON[T any](ctx context.Context, client *http.Client, endpoint string, params, header map[string]string, validators ...*validator.Validate) (*T, error) {
	u, err := makeURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	req, err := makeRequest(ctx, http.MethodGet, u, header)
	if err != nil {
		return nil, err
	}

	return sendRequest[T](client, req, validators...)
}

// validateEach validates every element of a top-level JSON array
func validateEach[T any](items []T) error {
	for i := range items {
		if err := validate.Struct(&items[i]); err != nil {
			return schemaMismatch(fmt.Errorf("item %d: %w", i, err))
		}
	}
	return nil
}
