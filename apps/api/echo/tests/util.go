package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	ordered  bool // compare listed data in order
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

type formFile struct {
	filename    string
	contentType string
	content     []byte
}

// newMultipartRequest sends `data` as a JSON form field along with `files` under the `documents` field.
func newMultipartRequest(t *testing.T, method, path, token string, data interface{}, files ...formFile) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		if err := w.WriteField("data", string(marchallObj(t, data))); err != nil {
			t.Fatalf("WriteField() failed: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="documents"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() failed: %v", err)
		}
		if _, err = part.Write(f.content); err != nil {
			t.Fatalf("part.Write() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Writer.Close() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// page mirrors the paginated listing of the API.
type page struct {
	Data        []interface{} `json:"data"`
	TotalRows   int           `json:"total_rows"`
	TotalPages  int           `json:"total_pages"`
	CurrentPage int           `json:"current_page"`
	PageSize    int           `json:"page_size"`
}

// marchallPage encodes a single page of default size holding every given object.
func marchallPage(t *testing.T, objs ...interface{}) []byte {
	return marchallPageN(t, 1, 20, len(objs), objs...)
}

func marchallPageN(t *testing.T, current, size, total int, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	pages := 0
	if total > 0 {
		pages = (total + size - 1) / size
	}
	return marchallObj(t, page{Data: objs, TotalRows: total, TotalPages: pages, CurrentPage: current, PageSize: size})
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte, ordered bool) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil || ordered {
		return false, nil
	}

	// paginated listings: same metadata, same rows in any order
	m1, ok1 := j1.(map[string]interface{})
	m2, ok2 := j2.(map[string]interface{})
	if ok1 && ok2 {
		d1, dok1 := m1["data"].([]interface{})
		d2, dok2 := m2["data"].([]interface{})
		if !(dok1 && dok2) {
			return false, nil
		}
		delete(m1, "data")
		delete(m2, "data")
		if !reflect.DeepEqual(m1, m2) {
			return false, nil
		}
		return assert.ElementsMatch(t, d1, d2), nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData, tt.ordered)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
