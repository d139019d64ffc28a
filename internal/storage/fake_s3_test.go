package storage

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 is a tiny path-style S3 endpoint covering the calls the gateways make.
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]map[string]fakeObject
	created  map[string]time.Time
	pageSize int

	// createBodies holds the last CreateBucket request body per bucket.
	createBodies map[string]string
	policies     map[string]string

	denyPut    bool
	denyPolicy bool
	denyList   bool
	lists      int
}

type fakeObject struct {
	data        []byte
	contentType string
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{
		buckets:      make(map[string]map[string]fakeObject),
		created:      make(map[string]time.Time),
		pageSize:     1000,
		createBodies: make(map[string]string),
		policies:     make(map[string]string),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) object(bucket, key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[bucket][key]
	return obj, ok
}

func (f *fakeS3) createBody(bucket string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.createBodies[bucket]
	return body, ok
}

func (f *fakeS3) policy(bucket string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[bucket]
	return p, ok
}

func (f *fakeS3) seed(bucket string, objects map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buckets[bucket]; !ok {
		f.buckets[bucket] = make(map[string]fakeObject)
		f.created[bucket] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	for k, v := range objects {
		f.buckets[bucket][k] = fakeObject{data: []byte(v), contentType: "text/plain"}
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	q := r.URL.Query()

	switch {
	case bucket == "" && r.Method == http.MethodGet:
		f.listBuckets(w)
	case key == "" && r.Method == http.MethodGet && q.Has("location"):
		writeXML(w, http.StatusOK, struct {
			XMLName xml.Name `xml:"LocationConstraint"`
		}{})
	case key == "" && r.Method == http.MethodPut && q.Has("policy"):
		f.putPolicy(w, r, bucket)
	case key == "" && r.Method == http.MethodPut:
		f.createBucket(w, r, bucket)
	case key == "" && r.Method == http.MethodGet:
		f.listObjects(w, bucket, q.Get("continuation-token"))
	case key != "" && r.Method == http.MethodPut:
		f.putObject(w, r, bucket, key)
	default:
		writeError(w, http.StatusNotImplemented, "NotImplemented", r.Method+" "+r.URL.Path)
	}
}

func (f *fakeS3) createBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	f.createBodies[bucket] = string(body)

	if _, ok := f.buckets[bucket]; ok {
		writeError(w, http.StatusConflict, "BucketAlreadyOwnedByYou", "Your previous request to create the named bucket succeeded and you already own it.")
		return
	}
	f.buckets[bucket] = make(map[string]fakeObject)
	f.created[bucket] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.Header().Set("Location", "/"+bucket)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) putObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if f.denyPut {
		writeError(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		return
	}
	objects, ok := f.buckets[bucket]
	if !ok {
		writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}

	objects[key] = fakeObject{data: body, contentType: r.Header.Get("Content-Type")}
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeS3) putPolicy(w http.ResponseWriter, r *http.Request, bucket string) {
	if f.denyPolicy {
		writeError(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		return
	}
	if _, ok := f.buckets[bucket]; !ok {
		writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	f.policies[bucket] = string(body)
	w.WriteHeader(http.StatusNoContent)
}

type listEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type listResult struct {
	XMLName               xml.Name    `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	Name                  string      `xml:"Name"`
	Prefix                string      `xml:"Prefix"`
	KeyCount              int         `xml:"KeyCount"`
	MaxKeys               int         `xml:"MaxKeys"`
	IsTruncated           bool        `xml:"IsTruncated"`
	ContinuationToken     string      `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string      `xml:"NextContinuationToken,omitempty"`
	Contents              []listEntry `xml:"Contents"`
}

func (f *fakeS3) listObjects(w http.ResponseWriter, bucket, token string) {
	f.lists++
	objects, ok := f.buckets[bucket]
	if !ok || f.denyList {
		writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start, _ := strconv.Atoi(token)
	end := min(start+f.pageSize, len(keys))

	res := listResult{Name: bucket, MaxKeys: f.pageSize, ContinuationToken: token}
	for _, k := range keys[start:end] {
		res.Contents = append(res.Contents, listEntry{
			Key:          k,
			LastModified: "2024-01-01T00:00:00.000Z",
			ETag:         `"d41d8cd98f00b204e9800998ecf8427e"`,
			Size:         int64(len(objects[k].data)),
			StorageClass: "STANDARD",
		})
	}
	res.KeyCount = len(res.Contents)
	if end < len(keys) {
		res.IsTruncated = true
		res.NextContinuationToken = strconv.Itoa(end)
	}
	writeXML(w, http.StatusOK, res)
}

type bucketEntry struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type bucketsResult struct {
	XMLName xml.Name      `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListAllMyBucketsResult"`
	OwnerID string        `xml:"Owner>ID"`
	Buckets []bucketEntry `xml:"Buckets>Bucket"`
}

func (f *fakeS3) listBuckets(w http.ResponseWriter) {
	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	res := bucketsResult{OwnerID: "test"}
	for _, name := range names {
		res.Buckets = append(res.Buckets, bucketEntry{
			Name:         name,
			CreationDate: f.created[name].Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeXML(w, http.StatusOK, res)
}

type errorBody struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeXML(w, status, errorBody{Code: code, Message: message, RequestID: "fake"})
}

func writeXML(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	_ = xml.NewEncoder(&buf).Encode(v)
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("X-Amz-Request-Id", "fake")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// readBody returns the request payload with any aws-chunked framing removed.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") ||
		strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		return decodeAWSChunked(body)
	}
	return body, nil
}

// decodeAWSChunked strips the aws-chunked framing used by streaming SigV4 uploads.
func decodeAWSChunked(body []byte) ([]byte, error) {
	var out bytes.Buffer
	r := bufio.NewReader(bytes.NewReader(body))
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse chunk size %q: %w", sizeHex, err)
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		if _, err := r.Discard(2); err != nil {
			return nil, fmt.Errorf("read chunk trailer: %w", err)
		}
	}
}
