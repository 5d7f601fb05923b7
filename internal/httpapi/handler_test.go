package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"bridgesheet/internal/auth"
	"bridgesheet/internal/config"
	"bridgesheet/internal/event"
	"bridgesheet/internal/httpapi"
	"bridgesheet/internal/model"
	"bridgesheet/internal/ocr"
	"bridgesheet/internal/roster"
	"bridgesheet/internal/visionclient"
)

const eventID = "A1B2C3D4"

var now = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, config.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.App{
		SetupSecret:   "s3cret",
		JWTIssuer:     "bridgesheet",
		JWTSigningKey: "test-signing-key",
		SessionTTL:    time.Hour,
	}

	events := event.NewService(event.NewRepository(db))
	rosterSvc := roster.NewService(roster.NewRepository(db))
	jobs := ocr.NewService(ocr.NewRepository(db), visionclient.New("", 0, true))

	r := gin.New()
	httpapi.New(cfg, events, rosterSvc, jobs, nil).Register(r)
	return r, mock, cfg
}

func bearer(t *testing.T, cfg config.App) string {
	t.Helper()
	sess, err := auth.Issue("rick", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.SessionTTL)
	require.NoError(t, err)
	return "Bearer " + sess.Token
}

func doJSON(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func expectGetEvent(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT id, name, date::text`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "date", "teacher", "location", "type", "created_at"}).
			AddRow(id, "Tuesday Beginner", "2026-03-10", "Rick", "", model.EventInPerson, now))
}

func TestSessionFlow(t *testing.T) {
	r, mock, cfg := newTestServer(t)

	w := doJSON(r, http.MethodPost, "/v1/session", "", `{"secret": "wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/session", "", `{"secret": "s3cret", "name": "Rick"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := auth.Parse(resp.Token, cfg.JWTSigningKey, cfg.JWTIssuer)
	require.NoError(t, err)
	require.Equal(t, "Rick", claims.Subject)
	require.Equal(t, "teacher", claims.Role)

	// the issued token opens the protected routes
	mock.ExpectQuery(`SELECT id, name, date::text`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "date", "teacher", "location", "type", "created_at"}))
	w = doJSON(r, http.MethodGet, "/v1/events", "Bearer "+resp.Token, "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := doJSON(r, http.MethodGet, "/v1/events", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/events", "Bearer not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateEvent(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	mock.ExpectQuery(`INSERT INTO events`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	w := doJSON(r, http.MethodPost, "/v1/events", token,
		`{"name": "Tuesday Beginner", "teacher": "Rick", "date": "2026-03-10"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var evt model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evt))
	require.True(t, event.ValidID(evt.ID))
	require.Equal(t, model.EventInPerson, evt.Type)

	// binding catches the missing teacher before the service runs
	w = doJSON(r, http.MethodPost, "/v1/events", token, `{"name": "Tuesday Beginner"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEventNotFound(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	mock.ExpectQuery(`SELECT id, name, date::text`).
		WithArgs("FFFFFFFF").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "date", "teacher", "location", "type", "created_at"}))

	w := doJSON(r, http.MethodGet, "/v1/events/FFFFFFFF", token, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPhotoRunsExtraction(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	expectGetEvent(mock, eventID)
	mock.ExpectQuery(`INSERT INTO ocr_jobs`).
		WithArgs(sqlmock.AnyArg(), eventID, "https://img.example/sheet.jpg", ocr.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec(`UPDATE ocr_jobs SET status`).
		WithArgs(sqlmock.AnyArg(), ocr.StatusProcessing, ocr.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE ocr_jobs SET status`).
		WithArgs(sqlmock.AnyArg(), ocr.StatusComplete, ocr.StatusProcessing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, event_id, image_url, status`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "image_url", "status", "result", "error", "created_at", "processed_at"}).
			AddRow("job-1", eventID, "https://img.example/sheet.jpg", ocr.StatusComplete,
				[]byte(`{"attendance": [{"name": "Alice Johnson"}]}`), nil, now, now))

	w := doJSON(r, http.MethodPost, "/v1/events/"+eventID+"/photos", token,
		`{"image_url": "https://img.example/sheet.jpg"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job ocr.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.Equal(t, ocr.StatusComplete, job.Status)
	require.NotEmpty(t, job.Result)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPhotoRequiresSource(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	expectGetEvent(mock, eventID)

	w := doJSON(r, http.MethodPost, "/v1/events/"+eventID+"/photos", token, `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadBase64WithoutStorageConfigured(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	expectGetEvent(mock, eventID)

	w := doJSON(r, http.MethodPost, "/v1/events/"+eventID+"/photos", token,
		`{"data": "data:image/jpeg;base64,AAAA"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmEndpoint(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	expectGetEvent(mock, eventID)
	mock.ExpectQuery(`SELECT id, name, email, first_event_id, created_at`).
		WithArgs("Alice Johnson").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "first_event_id", "created_at"}))
	mock.ExpectQuery(`INSERT INTO students`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery(`SELECT 1 FROM attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	w := doJSON(r, http.MethodPost, "/v1/events/"+eventID+"/confirm", token,
		`{"attendance": [{"student_name": "Alice Johnson", "table_number": 1, "seat": "N"}], "mailing_list": []}`)
	require.Equal(t, http.StatusOK, w.Code)

	var report roster.ConfirmReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 1, report.Attendance.Created)
	require.Equal(t, 0, report.Attendance.Skipped)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttendanceDuplicateIs409(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	expectGetEvent(mock, eventID)
	mock.ExpectQuery(`SELECT id, name, email, first_event_id, created_at`).
		WithArgs("Alice Johnson").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "first_event_id", "created_at"}).
			AddRow("st-1", "Alice Johnson", nil, eventID, now))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	w := doJSON(r, http.MethodPost, "/v1/events/"+eventID+"/attendance", token,
		`{"student_name": "Alice Johnson"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportMembers(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	mock.ExpectExec(`INSERT INTO members`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPost, "/v1/members/import", token,
		`{"members": [{"name": "Alice Johnson", "email": "alice@example.com"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"imported": 1}`, w.Body.String())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterEndpoint(t *testing.T) {
	r, mock, cfg := newTestServer(t)
	token := bearer(t, cfg)

	expectGetEvent(mock, eventID)
	mock.ExpectQuery(`SELECT DISTINCT ON \(s.id\)`).
		WithArgs("Tuesday Beginner").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "first_event_id", "created_at", "is_member", "declined"}).
			AddRow("st-1", "Bob Smith", nil, eventID, now, false, false))

	w := doJSON(r, http.MethodGet, "/v1/events/"+eventID+"/roster", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Roster []roster.RosterStatus `json:"roster"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Roster, 1)
	require.True(t, resp.Roster[0].NeedsSignup)

	require.NoError(t, mock.ExpectationsWereMet())
}
