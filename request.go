package client

import (
	"maps"
	"net/http"
)

// RequestHook transforms a request before it is sent. It runs once per
// attempt on a fresh copy of the original request.
type RequestHook func(req *Request) (*Request, error)

// ResponseHook transforms a successful response before it is returned.
type ResponseHook func(resp *Response) (*Response, error)

// Request describes one logical request. URL is resolved against the base
// URL given to [New]. FormData takes precedence over Body.
type Request struct {
	URL      string
	Headers  map[string]string
	FormData map[string]string
	Body     any

	BeforeSend   RequestHook
	AfterReceive ResponseHook
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Request) clone() *Request {
	c := *r
	c.Headers = maps.Clone(r.Headers)
	c.FormData = maps.Clone(r.FormData)

	return &c
}
