package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	structValidator "github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/haguru/doorquest/internal/hasher"
	"github.com/haguru/doorquest/internal/interfaces"
	"github.com/haguru/doorquest/internal/middleware"
	"github.com/haguru/doorquest/internal/models/dto"
	"github.com/haguru/doorquest/internal/picstore"
	"github.com/haguru/doorquest/internal/userservice"
)

const (
	// DefaultMaxBodyBytes applies when no body limit is configured.
	DefaultMaxBodyBytes int64 = 10 << 20

	multipartMemory int64 = 1 << 20
)

type Route struct {
	Metrics      interfaces.Metrics
	UserService  interfaces.UserService
	Logger       interfaces.Logger
	MaxBodyBytes int64
	validator    *structValidator.Validate
}

// NewRoute creates a new Route instance. Validation errors name fields by
// their form key.
func NewRoute(metrics interfaces.Metrics, userService interfaces.UserService, logger interfaces.Logger,
	validator *structValidator.Validate, maxBodyBytes int64,
) *Route {
	if validator == nil {
		validator = structValidator.New()
	}
	validator.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// registration only fails for an empty tag or nil func
	_ = validator.RegisterValidation(MaxBytesTag, validateMaxBytes)
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	return &Route{
		Metrics:      metrics,
		UserService:  userService,
		Logger:       logger,
		MaxBodyBytes: maxBodyBytes,
		validator:    validator,
	}
}

// validateMaxBytes limits the length of a string field in bytes. The
// built-in max tag counts runes.
func validateMaxBytes(fl structValidator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return fl.Field().Kind() == reflect.String && len(fl.Field().String()) <= limit
}

// RegisterMetrics registers the request counter and duration histogram used by the handlers.
func RegisterMetrics(m interfaces.Metrics) {
	m.RegisterCounterVec(RequestsTotal, RequestsTotalHelp, []string{LabelOperation, LabelOutcome})
	m.RegisterHistogramVec(RequestDurationSeconds, RequestDurationSecondsHelp,
		RequestDurationSecondsBuckets, []string{LabelOperation})
}

// AddRoutes registers every account endpoint on s.
func (r *Route) AddRoutes(s interfaces.Server) error {
	handlers := []struct {
		pattern string
		handler func(http.ResponseWriter, *http.Request)
	}{
		{RootRouteAPI, r.Root},
		{RegisterRouteAPI, r.Register},
		{ListUsersRouteAPI, r.ListUsers},
		{LoginRouteAPI, r.Login},
		{ChangePasswordRouteAPI, r.ChangePassword},
		{UploadProfilePicRouteAPI, r.UploadProfilePic},
		{GetProfilePicRouteAPI, r.GetProfilePic},
	}
	for _, h := range handlers {
		if err := s.AddRoute(h.pattern, h.handler); err != nil {
			return fmt.Errorf("failed to add route %s: %w", h.pattern, err)
		}
	}
	return nil
}

// Root is the liveness endpoint.
func (r *Route) Root(w http.ResponseWriter, req *http.Request) {
	r.record(OpRoot, OutcomeSuccess, time.Now())
	r.writeJSON(w, req, http.StatusOK, &dto.MessageResponseDTO{Message: MsgAPIRunning})
}

// Register creates an account from the username and password form fields.
func (r *Route) Register(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()

	registerRequest := &dto.UserSignupRequestDTO{}
	if status, message, err := r.decodeForm(w, req, registerRequest); err != nil {
		r.record(OpRegister, OutcomeInvalid, startTime)
		r.errorResponse(w, req, status, err, message)
		return
	}

	_, err := r.UserService.RegisterUser(req.Context(), registerRequest.Username, registerRequest.Password)
	if errors.Is(err, hasher.ErrPasswordTooLong) {
		r.record(OpRegister, OutcomeInvalid, startTime)
		r.errorResponse(w, req, http.StatusBadRequest, err, fmt.Sprintf(MsgValidationFailedFmt, "password"))
		return
	}
	if err != nil {
		r.record(OpRegister, OutcomeError, startTime)
		r.errorResponse(w, req, http.StatusInternalServerError, err, MsgFailedToRegister)
		return
	}

	r.record(OpRegister, OutcomeSuccess, startTime)
	r.writeJSON(w, req, http.StatusOK, &dto.MessageResponseDTO{
		Message: fmt.Sprintf(MsgUserRegisteredFmt, registerRequest.Username),
	})
}

// ListUsers returns every registered username.
func (r *Route) ListUsers(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()

	usernames, err := r.UserService.ListUsernames(req.Context())
	if err != nil {
		r.record(OpListUsers, OutcomeError, startTime)
		r.errorResponse(w, req, http.StatusInternalServerError, err, MsgFailedToListUsers)
		return
	}
	if usernames == nil {
		usernames = []string{}
	}

	r.record(OpListUsers, OutcomeSuccess, startTime)
	r.writeJSON(w, req, http.StatusOK, &dto.UserListResponseDTO{Users: usernames})
}

// Login checks credentials. A failed login is answered with 200 and a
// message that does not reveal whether the username exists.
func (r *Route) Login(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()

	loginRequest := &dto.LoginRequestDTO{}
	if status, message, err := r.decodeForm(w, req, loginRequest); err != nil {
		r.record(OpLogin, OutcomeInvalid, startTime)
		r.errorResponse(w, req, status, err, message)
		return
	}

	err := r.UserService.Login(req.Context(), loginRequest.Username, loginRequest.Password)
	switch {
	case errors.Is(err, userservice.ErrInvalidCredentials):
		r.record(OpLogin, OutcomeUnauthorized, startTime)
		r.writeJSON(w, req, http.StatusOK, &dto.MessageResponseDTO{Message: MsgInvalidCredentials})
	case err != nil:
		r.record(OpLogin, OutcomeError, startTime)
		r.errorResponse(w, req, http.StatusInternalServerError, err, MsgInternalError)
	default:
		r.record(OpLogin, OutcomeSuccess, startTime)
		r.writeJSON(w, req, http.StatusOK, &dto.MessageResponseDTO{
			Message: fmt.Sprintf(MsgWelcomeFmt, loginRequest.Username),
		})
	}
}

// ChangePassword replaces the password of an account after checking the old one.
func (r *Route) ChangePassword(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()

	changeRequest := &dto.ChangePasswordRequestDTO{}
	if status, message, err := r.decodeForm(w, req, changeRequest); err != nil {
		r.record(OpChangePassword, OutcomeInvalid, startTime)
		r.errorResponse(w, req, status, err, message)
		return
	}

	err := r.UserService.ChangePassword(req.Context(), changeRequest.Username,
		changeRequest.OldPassword, changeRequest.NewPassword)
	switch {
	case errors.Is(err, userservice.ErrInvalidCredentials):
		r.record(OpChangePassword, OutcomeUnauthorized, startTime)
		r.writeJSON(w, req, http.StatusOK, &dto.MessageResponseDTO{Message: MsgInvalidCredentials})
	case errors.Is(err, hasher.ErrPasswordTooLong):
		r.record(OpChangePassword, OutcomeInvalid, startTime)
		r.errorResponse(w, req, http.StatusBadRequest, err, fmt.Sprintf(MsgValidationFailedFmt, "new_password"))
	case err != nil:
		r.record(OpChangePassword, OutcomeError, startTime)
		r.errorResponse(w, req, http.StatusInternalServerError, err, MsgInternalError)
	default:
		r.record(OpChangePassword, OutcomeSuccess, startTime)
		r.writeJSON(w, req, http.StatusOK, &dto.MessageResponseDTO{Message: MsgPasswordUpdated})
	}
}

// UploadProfilePic stores the multipart "file" field as the picture of "username".
func (r *Route) UploadProfilePic(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()

	if err := r.parseForm(w, req); err != nil {
		status, message := r.bodyError(err)
		r.record(OpUploadProfilePic, OutcomeInvalid, startTime)
		r.errorResponse(w, req, status, err, message)
		return
	}

	var (
		reader   io.Reader
		filename string
	)
	file, header, err := req.FormFile(FormFieldFile)
	if err == nil {
		defer file.Close()
		reader = file
		filename = header.Filename
	}

	stored, err := r.UserService.UploadProfilePic(req.Context(), req.FormValue(FormFieldUsername), filename, reader)
	if err != nil {
		status, message := http.StatusInternalServerError, MsgFailedToSaveFile
		switch {
		case errors.Is(err, userservice.ErrUsernameRequired):
			status, message = http.StatusBadRequest, MsgUsernameRequired
		case errors.Is(err, userservice.ErrFileRequired):
			status, message = http.StatusBadRequest, MsgFileRequired
		case errors.Is(err, picstore.ErrInvalidFileType):
			status, message = http.StatusBadRequest, MsgInvalidFileType
		case errors.Is(err, picstore.ErrInvalidUsername):
			status, message = http.StatusBadRequest, MsgInvalidUsername
		}
		outcome := OutcomeInvalid
		if status == http.StatusInternalServerError {
			outcome = OutcomeError
		}
		r.record(OpUploadProfilePic, outcome, startTime)
		r.errorResponse(w, req, status, err, message)
		return
	}

	r.record(OpUploadProfilePic, OutcomeSuccess, startTime)
	r.writeJSON(w, req, http.StatusOK, &dto.UploadProfilePicResponseDTO{
		Message:  MsgProfilePicUploaded,
		Filename: stored,
	})
}

// GetProfilePic serves the stored picture bytes as image/jpeg.
func (r *Route) GetProfilePic(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()

	data, err := r.UserService.GetProfilePic(req.Context(), req.PathValue(FormFieldUsername))
	switch {
	case errors.Is(err, picstore.ErrNotFound), errors.Is(err, picstore.ErrInvalidUsername):
		r.record(OpGetProfilePic, OutcomeNotFound, startTime)
		r.errorResponse(w, req, http.StatusNotFound, err, MsgProfilePicNotFound)
		return
	case err != nil:
		r.record(OpGetProfilePic, OutcomeError, startTime)
		r.errorResponse(w, req, http.StatusInternalServerError, err, MsgInternalError)
		return
	}

	r.record(OpGetProfilePic, OutcomeSuccess, startTime)
	w.Header().Set(ContentType, ContentTypeJpeg)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		r.logger(req).Warn(ErrFailedToEncodeResponse, "operation", OpGetProfilePic, "error", err)
	}
}

// parseForm reads an url-encoded or multipart body of at most MaxBodyBytes.
func (r *Route) parseForm(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.MaxBodyBytes)
	if strings.HasPrefix(req.Header.Get(ContentType), ContentTypeMultipart) {
		return req.ParseMultipartForm(multipartMemory)
	}
	return req.ParseForm()
}

// decodeForm parses the request form into target and validates it. On
// failure it returns the status and client message to answer with.
func (r *Route) decodeForm(w http.ResponseWriter, req *http.Request, target interface{}) (int, string, error) {
	if err := r.parseForm(w, req); err != nil {
		status, message := r.bodyError(err)
		return status, message, fmt.Errorf("%s: %w", ErrFailedToDecodeRequest, err)
	}

	fields := make(map[string]interface{}, len(req.Form))
	for key := range req.Form {
		fields[key] = req.Form.Get(key)
	}
	if err := mapstructure.Decode(fields, target); err != nil {
		return http.StatusBadRequest, MsgInvalidRequestBody, fmt.Errorf("%s: %w", ErrFailedToDecodeRequest, err)
	}

	if err := r.validator.Struct(target); err != nil {
		field := ""
		var validationErrors structValidator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			field = validationErrors[0].Field()
		}
		return http.StatusBadRequest, fmt.Sprintf(MsgValidationFailedFmt, field), fmt.Errorf("%s: %w", ErrValidationFailed, err)
	}

	return http.StatusOK, "", nil
}

func (r *Route) bodyError(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, MsgRequestTooLarge
	}
	return http.StatusBadRequest, MsgInvalidRequestBody
}

func (r *Route) record(operation, outcome string, startTime time.Time) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.IncCounterVec(RequestsTotal, operation, outcome)
	r.Metrics.ObserveHistogramVec(RequestDurationSeconds, time.Since(startTime).Seconds(), operation)
}

func (r *Route) logger(req *http.Request) interfaces.Logger {
	return middleware.LoggerFromContext(req.Context(), r.Logger)
}

func (r *Route) writeJSON(w http.ResponseWriter, req *http.Request, status int, body interface{}) {
	w.Header().Set(ContentType, ContentTypeJson)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		r.logger(req).Warn(ErrFailedToEncodeResponse, "error", err)
	}
}

// errorResponse logs err and answers with message only.
func (r *Route) errorResponse(w http.ResponseWriter, req *http.Request, status int, err error, message string) {
	if status >= http.StatusInternalServerError {
		r.logger(req).Error(ErrRequestFailed, "status", status, "error", err)
	} else {
		r.logger(req).Debug(ErrRequestFailed, "status", status, "error", err)
	}
	r.writeJSON(w, req, status, &dto.MessageResponseDTO{Message: message})
}
