package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

type MockFragmentService struct {
	mock.Mock
}

func (m *MockFragmentService) Create(ctx context.Context, input service.CreateFragmentInput) (*domain.Fragment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Fragment), args.Error(1)
}

func (m *MockFragmentService) GetByID(ctx context.Context, id string) (*domain.Fragment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Fragment), args.Error(1)
}

func (m *MockFragmentService) ListPage(ctx context.Context, input service.ListFragmentsInput) (*service.ListFragmentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListFragmentsOutput), args.Error(1)
}

func (m *MockFragmentService) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockFragmentService) Related(ctx context.Context, id string, limit int) ([]*service.RelatedFragment, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.RelatedFragment), args.Error(1)
}

func newTestFragment() *domain.Fragment {
	return &domain.Fragment{
		ID:           "f-123",
		RawContent:   "Decided to keep the nightly importer single-threaded for now.",
		SourceType:   domain.SourceTypeQuickCapture,
		CapturedAt:   time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Participants: []string{"dana"},
		Topics:       []string{"importer"},
		Project:      "importer",
	}
}

func requestWithID(method, url, id string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestFragmentHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	expected := newTestFragment()
	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateFragmentInput) bool {
		return input.RawContent == expected.RawContent && input.SourceType == domain.SourceTypeQuickCapture
	})).Return(expected, nil)

	body := `{"raw_content":"Decided to keep the nightly importer single-threaded for now.","project":"importer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/fragments", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestFragmentHandler_Create_DefaultsSourceType(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateFragmentInput) bool {
		return input.SourceType == domain.SourceTypeQuickCapture
	})).Return(newTestFragment(), nil)

	body := `{"raw_content":"note without a source type"}`
	req := httptest.NewRequest(http.MethodPost, "/api/fragments", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestFragmentHandler_Create_MissingRawContent(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	body := `{"source_type":"notes"}`
	req := httptest.NewRequest(http.MethodPost, "/api/fragments", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFragmentHandler_Create_InvalidCapturedAt(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	body := `{"raw_content":"note","captured_at":"yesterday"}`
	req := httptest.NewRequest(http.MethodPost, "/api/fragments", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFragmentHandler_Create_InvalidBody(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/fragments", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFragmentHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	expected := newTestFragment()
	mockSvc.On("GetByID", mock.Anything, "f-123").Return(expected, nil)

	req := requestWithID(http.MethodGet, "/api/fragments/f-123", "f-123", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "f-123", data["id"])
	assert.Equal(t, "2025-03-14T09:30:00Z", data["captured_at"])
	mockSvc.AssertExpectations(t)
}

func TestFragmentHandler_List_ParsesFilters(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mockSvc.On("ListPage", mock.Anything, mock.MatchedBy(func(input service.ListFragmentsInput) bool {
		return input.Filter.Project == "importer" &&
			input.Filter.SourceType == domain.SourceTypeZoom &&
			input.Filter.Since != nil && input.Filter.Since.Equal(since) &&
			input.Limit == 5 &&
			input.Cursor == "abc"
	})).Return(&service.ListFragmentsOutput{Items: []*domain.Fragment{}}, nil)

	url := "/api/fragments?project=importer&source_type=zoom&since=2025-03-01T00:00:00Z&limit=5&cursor=abc"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestFragmentHandler_List_InvalidSince(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/fragments?since=last-week", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything)
}

func TestFragmentHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "f-123").Return(true, nil)

	req := requestWithID(http.MethodDelete, "/api/fragments/f-123", "f-123", nil)
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["deleted"])
	mockSvc.AssertExpectations(t)
}

func TestFragmentHandler_Related_Success(t *testing.T) {
	mockSvc := new(MockFragmentService)
	handler := NewFragmentHandler(mockSvc)

	related := []*service.RelatedFragment{
		{
			Fragment:  newTestFragment(),
			Kind:      domain.LinkKindRelatesTo,
			Strength:  0.82,
			Direction: service.LinkDirectionOutgoing,
		},
	}
	mockSvc.On("Related", mock.Anything, "f-456", 10).Return(related, nil)

	req := requestWithID(http.MethodGet, "/api/fragments/f-456/related", "f-456", nil)
	w := httptest.NewRecorder()

	handler.Related(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "relates_to", item["kind"])
	assert.Equal(t, "outgoing", item["direction"])
	mockSvc.AssertExpectations(t)
}
