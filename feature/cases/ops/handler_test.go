package ops

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"case-reconciler/core/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, sqlMock
}

func setupTestApp(t *testing.T) (*fiber.App, *mocks.Client, sqlmock.Sqlmock) {
	t.Helper()
	app := fiber.New()
	mockClient := new(mocks.Client)
	db, sqlMock := setupMockDB(t)
	svc := NewService(db, mockClient, "test-bucket", zap.NewNop())
	NewHandler(svc).RegisterRoutes(app)
	return app, mockClient, sqlMock
}

func TestHandleListRuns(t *testing.T) {
	app, _, sqlMock := setupTestApp(t)

	now := time.Now()
	sqlMock.ExpectQuery("SELECT \\* FROM `run_record`").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "run_id", "started_at", "finished_at", "success",
			"cases_added", "cases_updated", "cases_skipped", "error",
		}).
			AddRow(2, "run-b", now, now, true, 3, 1, 7, "").
			AddRow(1, "run-a", now.Add(-time.Hour), now.Add(-time.Hour), false, 0, 0, 0, "boom"))

	req := httptest.NewRequest("GET", "/runs/", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var runs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0]["RunID"])
	assert.Equal(t, "boom", runs[1]["Error"])
}

func TestHandleListRunsRejectsBadLimit(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("GET", "/runs/?limit=zero", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleGetRunNotFound(t *testing.T) {
	app, _, sqlMock := setupTestApp(t)

	sqlMock.ExpectQuery("SELECT \\* FROM `run_record`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id"}))

	req := httptest.NewRequest("GET", "/runs/run-missing", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHandleListCases(t *testing.T) {
	app, mockClient, _ := setupTestApp(t)

	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "cases/101-1.json"}
	ch <- minio.ObjectInfo{Key: "cases/102-1.json"}
	close(ch)
	mockClient.On("ListObjects", mock.Anything, "test-bucket", mock.Anything).
		Return((<-chan minio.ObjectInfo)(ch))

	req := httptest.NewRequest("GET", "/cases/", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"101-1", "102-1"}, body["cases"])
}

func TestHandleGetCase(t *testing.T) {
	app, mockClient, _ := setupTestApp(t)

	record := io.NopCloser(strings.NewReader(`{"interpretation_request_id":"101-1"}`))
	mockClient.On("GetObject", mock.Anything, "test-bucket", "cases/101-1.json", mock.Anything).
		Return(record, nil)

	req := httptest.NewRequest("GET", "/cases/101-1", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"interpretation_request_id":"101-1"}`, string(raw))
}

func TestHandleCasesWithoutStorage(t *testing.T) {
	app := fiber.New()
	db, _ := setupMockDB(t)
	svc := NewService(db, nil, "", zap.NewNop())
	NewHandler(svc).RegisterRoutes(app)

	req := httptest.NewRequest("GET", "/cases/", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestLoader(t *testing.T) {
	mockClient := new(mocks.Client)
	feature := NewFeature(nil, mockClient, "test-bucket", zap.NewNop())

	assert.Equal(t, "ops", feature.Name())
	assert.True(t, feature.IsEnabled())

	app := fiber.New()
	err := feature.Load(app)
	assert.NoError(t, err)
}
