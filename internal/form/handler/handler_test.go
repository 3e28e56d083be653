package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"entrypass/internal/completion"
	"entrypass/internal/form/handler/mocks"
	formservice "entrypass/internal/form/service"
	"entrypass/internal/persistence"
	"entrypass/internal/platform/middleware"
	"entrypass/internal/validation"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/form-mocks.go -package=mocks Service

const (
	testToken    = "valid-session-token"
	testAdminKey = "test-admin-key"
)

// stubValidator accepts exactly one token.
type stubValidator struct {
	session id.SessionID
}

func (v stubValidator) ValidateToken(token string) (*middleware.SessionClaims, error) {
	if token != testToken {
		return nil, errors.New("bad token")
	}
	return &middleware.SessionClaims{SessionID: v.session.String(), Device: "iPhone"}, nil
}

type FormHandlerSuite struct {
	suite.Suite
	router  *chi.Mux
	service *mocks.MockService
	session id.SessionID
}

func TestFormHandlerSuite(t *testing.T) {
	suite.Run(t, new(FormHandlerSuite))
}

func (s *FormHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	s.session = id.NewSessionID()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, logger, nil, stubValidator{session: s.session}, string(hash))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *FormHandlerSuite) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *FormHandlerSuite) TestUpdateField() {
	s.service.EXPECT().
		UpdateField(gomock.Any(), id.ScreenID("passport:th"), "passportNumber", "AB123456", false).
		Return(&formservice.UpdateResult{
			Field:      "passportNumber",
			SaveKey:    id.FieldSaveKey("passport:th", "passportNumber"),
			Validation: validation.OK(),
			SaveState:  persistence.StatePending,
			Saved:      true,
		}, nil)

	w := s.do(http.MethodPut, "/v1/screens/passport:th/fields/passportNumber",
		map[string]any{"value": "AB123456", "prefill": false}, true)

	s.Equal(http.StatusOK, w.Code)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("passport:th:passportNumber", resp["save_key"])
	s.Equal(true, resp["save_scheduled"])
	s.Equal("pending", resp["save_state"])
}

func (s *FormHandlerSuite) TestUpdateFieldValidationFailure() {
	s.service.EXPECT().
		UpdateField(gomock.Any(), id.ScreenID("passport:th"), "passportNumber", "!!", false).
		Return(&formservice.UpdateResult{
			Field:      "passportNumber",
			Validation: validation.Fail("must be 6-12 alphanumeric characters"),
		}, nil)

	w := s.do(http.MethodPut, "/v1/screens/passport:th/fields/passportNumber",
		map[string]any{"value": "!!"}, true)

	// Validation failures are a successful pipeline run, not an HTTP error.
	s.Equal(http.StatusOK, w.Code)
	var resp struct {
		Validation validation.Result `json:"validation"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.False(resp.Validation.Valid)
}

func (s *FormHandlerSuite) TestUpdateFieldBadBody() {
	req := httptest.NewRequest(http.MethodPut, "/v1/screens/passport:th/fields/passportNumber",
		bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *FormHandlerSuite) TestUnauthorized() {
	w := s.do(http.MethodPut, "/v1/screens/passport:th/fields/passportNumber",
		map[string]any{"value": "x"}, false)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *FormHandlerSuite) TestOpenScreen() {
	s.service.EXPECT().
		OpenScreen(gomock.Any(), id.ScreenID("passport:th")).
		Return(&formservice.OpenResult{
			ScreenID: "passport:th",
			Values:   map[string]string{"passportNumber": "AB123456"},
		}, nil)

	w := s.do(http.MethodPost, "/v1/screens/passport:th/open", map[string]any{}, true)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "AB123456")
}

func (s *FormHandlerSuite) TestOpenScreenUnknown() {
	s.service.EXPECT().
		OpenScreen(gomock.Any(), id.ScreenID("nope")).
		Return(nil, dErrors.Newf(dErrors.CodeNotFound, "unknown screen %q", "nope"))

	w := s.do(http.MethodPost, "/v1/screens/nope/open", map[string]any{}, true)
	s.Equal(http.StatusNotFound, w.Code)
	s.Contains(w.Body.String(), "not_found")
}

func (s *FormHandlerSuite) TestFlushScreen() {
	s.service.EXPECT().
		FlushScreen(gomock.Any(), id.ScreenID("passport:th")).
		Return(nil)

	w := s.do(http.MethodPost, "/v1/screens/passport:th/flush", map[string]any{}, true)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *FormHandlerSuite) TestRetrySave() {
	s.service.EXPECT().
		RetrySave(gomock.Any(), id.ScreenID("passport:th"), "passportNumber").
		Return(persistence.StateSaved, nil)

	w := s.do(http.MethodPost, "/v1/screens/passport:th/fields/passportNumber/retry", map[string]any{}, true)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "saved")
}

func (s *FormHandlerSuite) TestTripSummary() {
	s.service.EXPECT().
		TripSummary(gomock.Any()).
		Return(completion.MultiSummary{
			Destinations: map[id.DestinationID]completion.Metrics{
				"th": {DestinationID: "th", TotalPercent: 100, Ready: true},
			},
			Summary: completion.Aggregate{Total: 1, Ready: 1, AnyProgress: true},
		}, nil)

	w := s.do(http.MethodGet, "/v1/destinations/summary", nil, true)
	s.Equal(http.StatusOK, w.Code)
	var resp completion.MultiSummary
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(1, resp.Summary.Ready)
}

func (s *FormHandlerSuite) TestDestinationSummary() {
	s.service.EXPECT().
		DestinationSummary(gomock.Any(), id.DestinationID("th")).
		Return(completion.Metrics{DestinationID: "th", TotalPercent: 42.5}, nil)

	w := s.do(http.MethodGet, "/v1/destinations/th/summary", nil, true)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "42.5")
}

func (s *FormHandlerSuite) TestSwitch() {
	s.service.EXPECT().
		Switch(gomock.Any(), id.DestinationID("th"), id.DestinationID("jp")).
		Return(completion.SwitchResult{Success: true}, nil)

	w := s.do(http.MethodPost, "/v1/destinations/switch",
		map[string]any{"from": "th", "to": "jp"}, true)
	s.Equal(http.StatusOK, w.Code)
}

func (s *FormHandlerSuite) TestAdminSaves() {
	s.service.EXPECT().
		SaveStates(gomock.Any()).
		Return([]formservice.SaveStatus{
			{Key: "passport:th:passportNumber", State: persistence.StateError},
		})

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/saves", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "passport:th:passportNumber")
}

func (s *FormHandlerSuite) TestAdminSavesWrongKey() {
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/saves", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusForbidden, w.Code)
}
