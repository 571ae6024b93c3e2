package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a *Store whose client talks to an in-memory fake
// S3 endpoint. Head, Get and Put are implemented.
func NewMockForTests() *Store {
	rt := &fakeS3{objects: make(map[string]fakeObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: "mock-bucket"}
}

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

// fakeS3 serves path-style requests (/bucket/key) from a map.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func emptyResponse(status int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: header}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return emptyResponse(http.StatusNotFound, nil), nil
		}
		header := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"` + fmt.Sprintf("%x", len(obj.body)) + `"`},
			"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return emptyResponse(http.StatusOK, header), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(obj.body)), Header: header}, nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if decoded, ok := decodeSingleChunk(body); ok {
			body = decoded
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), modified: time.Now().UTC()}
		return emptyResponse(http.StatusOK, http.Header{"Etag": {`"put"`}}), nil
	}
	return emptyResponse(http.StatusNotImplemented, nil), nil
}

// decodeSingleChunk unwraps an aws-chunked payload carrying one data chunk:
// <hex size>\r\n<body>\r\n0\r\n[trailers].
func decodeSingleChunk(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 || parts[2] != "0" {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || int64(len(parts[1])) != size {
		return nil, false
	}
	return []byte(parts[1]), true
}
