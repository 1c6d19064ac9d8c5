package routes

var RequestDurationSecondsBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

const (
	// API route patterns
	RootRouteAPI             = "GET /{$}"
	RegisterRouteAPI         = "POST /register"
	ListUsersRouteAPI        = "GET /users"
	LoginRouteAPI            = "POST /login"
	ChangePasswordRouteAPI   = "POST /change-password"
	UploadProfilePicRouteAPI = "POST /upload-profile-pic"
	GetProfilePicRouteAPI    = "GET /profile-pic/{username}"
	MetricsRouteAPI          = "GET /metrics"

	// Content-Type constants
	ContentType          = "Content-Type"
	ContentTypeJson      = "application/json"
	ContentTypeJpeg      = "image/jpeg"
	ContentTypeMultipart = "multipart/form-data"

	// MaxBytesTag is the validate tag for byte length limits, e.g. "maxbytes=72".
	MaxBytesTag = "maxbytes"

	// Form fields
	FormFieldUsername = "username"
	FormFieldFile     = "file"

	// message constants
	MsgAPIRunning          = "DoorQuest API is running!"
	MsgUserRegisteredFmt   = "User '%s' registered successfully!"
	MsgWelcomeFmt          = "Welcome, %s!"
	MsgInvalidCredentials  = "Invalid username or password."
	MsgPasswordUpdated     = "Password updated successfully!"
	MsgProfilePicUploaded  = "Profile picture uploaded!"
	MsgUsernameRequired    = "Username is required"
	MsgFileRequired        = "File is required"
	MsgInvalidFileType     = "Invalid file type. Only JPG, JPEG, and PNG are allowed."
	MsgInvalidUsername     = "Invalid username"
	MsgProfilePicNotFound  = "Profile picture not found"
	MsgRequestTooLarge     = "Request body too large"
	MsgInvalidRequestBody  = "Invalid request body"
	MsgValidationFailedFmt = "Missing or invalid field: %s"
	MsgFailedToSaveFile    = "Failed to save file"
	MsgFailedToRegister    = "Failed to register user"
	MsgFailedToListUsers   = "Failed to list users"
	MsgInternalError       = "Internal server error"

	// Error messages
	ErrFailedToDecodeRequest  = "failed to decode request body"
	ErrValidationFailed       = "data validation failed"
	ErrFailedToEncodeResponse = "failed to encode response"
	ErrRequestFailed          = "request failed"

	// metrics constants
	RequestsTotal              = "requests_total"
	RequestsTotalHelp          = "Total number of requests by operation and outcome"
	RequestDurationSeconds     = "request_duration_seconds"
	RequestDurationSecondsHelp = "Duration of requests in seconds by operation"
	LabelOperation             = "operation"
	LabelOutcome               = "outcome"

	// operation label values
	OpRoot             = "root"
	OpRegister         = "register"
	OpListUsers        = "list_users"
	OpLogin            = "login"
	OpChangePassword   = "change_password"
	OpUploadProfilePic = "upload_profile_pic"
	OpGetProfilePic    = "get_profile_pic"

	// outcome label values
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)
