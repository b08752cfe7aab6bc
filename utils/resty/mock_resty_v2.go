package resty

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"klinechart/utils/json"

	"github.com/go-resty/resty/v2"
)

// MockFuncResponse : Body 가 []byte 면 그대로, 아니면 json 으로 직렬화해서 응답 body 로 쓴다
type MockFuncResponse struct {
	Request    *resty.Request
	StatusCode int
	Header     http.Header
	Body       any
}

type MockFunc struct {
	Method     string
	Path       string
	ResultBody func(header map[string]string, requestBody any, param ...QueryParam) (MockFuncResponse, error)
}

type mockRestyClient struct {
	mocks map[string]map[string]MockFunc
}

type mockReadyRestyReq struct {
	mocks  map[string]map[string]MockFunc
	body   any
	header map[string]string
}

func (client *mockRestyClient) MakeRequest(_ context.Context, body any, header map[string]string, _ ...string) ReadyRestyReq {
	return &mockReadyRestyReq{mocks: client.mocks, header: header, body: body}
}

func (m *mockReadyRestyReq) Get(url string, queryParams ...QueryParam) (*resty.Response, error) {
	return m.serve(http.MethodGet, url, queryParams...)
}

func (m *mockReadyRestyReq) Post(url string, queryParams ...QueryParam) (*resty.Response, error) {
	return m.serve(http.MethodPost, url, queryParams...)
}

func (m *mockReadyRestyReq) serve(method, url string, queryParams ...QueryParam) (*resty.Response, error) {
	mockFunc, ok := m.mocks[method][url]
	if !ok {
		return nil, fmt.Errorf("mock not found for %s %s", method, url)
	}
	resultBody, givenError := mockFunc.ResultBody(m.header, m.body, queryParams...)
	resultResponse, createErr := CreateMockResponse(resultBody, givenError)
	if createErr != nil {
		return nil, createErr
	}
	return resultResponse, givenError
}

func CreateMockResponse(given MockFuncResponse, givenError error) (*resty.Response, error) {
	request := given.Request
	if request == nil {
		request = &resty.Request{}
	}
	request.Error = givenError

	var body []byte
	switch b := given.Body.(type) {
	case []byte:
		body = b
	case string:
		body = []byte(b)
	default:
		var err error
		if body, err = json.Marshal(b); err != nil {
			return nil, err
		}
	}

	statusCode := given.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	rawResponse := &http.Response{
		Status:     http.StatusText(statusCode),
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     given.Header,
	}
	restyResp := &resty.Response{
		RawResponse: rawResponse,
		Request:     request,
	}
	restyResp.SetBody(body)
	return restyResp, nil
}
