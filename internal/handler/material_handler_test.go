package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/educonnect-api/internal/dto"
	"github.com/noah-isme/educonnect-api/internal/handler"
	"github.com/noah-isme/educonnect-api/internal/service"
)

type stubMaterialService struct {
	addErr    error
	lastTitle string
	lastFile  string
	deleted   uint
}

func (s *stubMaterialService) Add(_ context.Context, _ service.Actor, courseID uint, payload dto.MaterialCreateRequest, file *multipart.FileHeader) (dto.MaterialResponse, error) {
	s.lastTitle = payload.Title
	s.lastFile = file.Filename
	if s.addErr != nil {
		return dto.MaterialResponse{}, s.addErr
	}
	return dto.MaterialResponse{ID: 1, Title: payload.Title}, nil
}

func (s *stubMaterialService) List(context.Context, service.Actor, uint) ([]dto.MaterialResponse, error) {
	return []dto.MaterialResponse{{ID: 1, Title: "Week 1"}}, nil
}

func (s *stubMaterialService) Delete(_ context.Context, _ service.Actor, materialID uint) error {
	s.deleted = materialID
	return nil
}

var _ service.MaterialService = (*stubMaterialService)(nil)

func newMaterialApp(svc service.MaterialService) *fiber.App {
	app := fiber.New()
	handler.NewMaterialHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/courses", asUser(5, "teacher")))
	return app
}

func materialUpload(t *testing.T, app *fiber.App, title string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("title", title))
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("binary search trees"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/2/materials", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestMaterialHandlerUpload(t *testing.T) {
	svc := &stubMaterialService{}
	resp := materialUpload(t, newMaterialApp(svc), "Week 1 notes")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "Week 1 notes", svc.lastTitle)
	require.Equal(t, "notes.txt", svc.lastFile)
}

func TestMaterialHandlerUploadErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{err: service.ErrUploadTypeNotAllowed, status: fiber.StatusBadRequest},
		{err: service.ErrUploadsDisabled, status: fiber.StatusServiceUnavailable},
		{err: service.ErrCourseForbidden, status: fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			resp := materialUpload(t, newMaterialApp(&stubMaterialService{addErr: tc.err}), "Week 1")
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestMaterialHandlerListAndDelete(t *testing.T) {
	svc := &stubMaterialService{}
	app := newMaterialApp(svc)

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/courses/2/materials", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var materials []dto.MaterialResponse
	decodeData(t, payload, &materials)
	require.Len(t, materials, 1)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/courses/materials/11", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(11), svc.deleted)
}
