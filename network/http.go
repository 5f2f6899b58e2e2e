package network

import (
	"io"
	"net/http"
	"time"
)

const RequestTimeout = time.Second * 10

// Http is the outbound http surface used by the fee policy manager. Tests
// substitute the func-field mock in this package.
type Http interface {
	Get(req *http.Request) ([]byte, error)
}

type DefaultHttp struct {
	client *http.Client
}

func NewHttp() Http {
	return &DefaultHttp{
		client: &http.Client{Timeout: RequestTimeout},
	}
}

func (d *DefaultHttp) Get(req *http.Request) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
